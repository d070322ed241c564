// Package shell is the storefront's navigation shell: it reads the auth
// store to render the nav panel, guard routes and gate cart actions.
package shell

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/dynooboo/storefront/internal/authstore"
)

// Store is the part of authstore.Store the shell consumes
type Store interface {
	Snapshot() authstore.State
	Subscribe() (<-chan authstore.State, func())
	Refresh(ctx context.Context) authstore.State
	Logout(ctx context.Context) error
}

// Shell re-renders on every session change and keeps the router on a route
// the current session may see.
type Shell struct {
	store  Store
	router *Router
	out    io.Writer
	logger zerolog.Logger
}

// New creates a shell rendering to out
func New(store Store, router *Router, out io.Writer, logger zerolog.Logger) *Shell {
	return &Shell{
		store:  store,
		router: router,
		out:    out,
		logger: logger,
	}
}

// Router returns the shell's router
func (sh *Shell) Router() *Router {
	return sh.router
}

// Run renders the panel for each state change until ctx is done or the
// store is closed. The onRender hook, if set, sees every rendered state.
func (sh *Shell) Run(ctx context.Context, onRender func(authstore.State, Panel)) error {
	states, cancel := sh.store.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-states:
			if !ok {
				return nil
			}

			panel := NavPanel(st)
			if sh.out != nil {
				if err := panel.Render(sh.out); err != nil {
					return err
				}
			}
			sh.Enforce(st)

			if onRender != nil {
				onRender(st, panel)
			}
		}
	}
}

// Enforce moves the router off a guarded route the state may not see.
// Nothing happens while the identity is still loading.
func (sh *Shell) Enforce(st authstore.State) Decision {
	route := sh.router.Current()
	guard := GuardFor(route)
	if guard == nil {
		return DecisionAllow
	}

	d := guard(st)
	switch d {
	case DecisionRedirectSignIn:
		sh.logger.Debug().Str("route", route).Msg("Guarded route needs sign-in")
		sh.router.Redirect(RouteSignIn)
	case DecisionForbidden:
		sh.logger.Debug().Str("route", route).Msg("Guarded route is admin only")
		sh.router.Redirect(RouteLanding)
	}
	return d
}

// Open navigates to route, applying its guard against the current state
func (sh *Shell) Open(route string) Decision {
	sh.router.Redirect(route)
	return sh.Enforce(sh.store.Snapshot())
}

// AddToCart checks whether the current session may add productID to the
// cart. Anonymous users are sent to sign in.
func (sh *Shell) AddToCart(productID string) Decision {
	st := sh.store.Snapshot()
	d := CartGate(st)

	switch d {
	case DecisionAllow:
		sh.logger.Info().
			Str("product_id", productID).
			Str("user_id", st.User.ID).
			Msg("Added product to cart")
	case DecisionRedirectSignIn:
		sh.router.Redirect(RouteSignIn)
	}
	return d
}

// Logout logs out through the store; the store redirects on success
func (sh *Shell) Logout(ctx context.Context) error {
	return sh.store.Logout(ctx)
}
