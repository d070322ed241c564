package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dynooboo/storefront/internal/authstore"
	"github.com/dynooboo/storefront/internal/cli/credentials"
	"github.com/dynooboo/storefront/internal/config"
	"github.com/dynooboo/storefront/internal/logger"
	"github.com/dynooboo/storefront/internal/session"
	"github.com/dynooboo/storefront/internal/shell"
)

// Option overrides a dependency of a command run
type Option func(*options)

type options struct {
	cfg     *config.Config
	secrets credentials.SecretStore
	out     io.Writer
	logger  *zerolog.Logger
}

// WithConfig uses cfg instead of loading it from the environment
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithSecretStore persists the session cookie in s instead of the OS keyring
func WithSecretStore(s credentials.SecretStore) Option {
	return func(o *options) {
		o.secrets = s
	}
}

// WithOutput writes command output to w
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// WithLogger uses l instead of the globally configured logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

// app is everything a command needs: one store per run, like one per tab
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	out     io.Writer
	jar     *credentials.Jar
	secrets credentials.SecretStore
	client  *session.Client
	store   *authstore.Store
	router  *shell.Router

	mu        sync.Mutex
	lastFetch *authstore.FetchEvent
}

func setup(opts ...Option) (*app, error) {
	o := options{
		secrets: credentials.Default,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	var log zerolog.Logger
	if o.logger != nil {
		log = *o.logger
	} else {
		logger.Init(cfg.Logging.Level, cfg.Logging.Format)
		log = logger.GetLogger()
	}

	jar, err := credentials.NewJar(cfg.API.BaseURL, o.secrets)
	if err != nil {
		return nil, err
	}

	client := session.New(
		cfg.API.BaseURL,
		session.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout, Jar: jar}),
		session.WithPaths(session.Paths{
			Me:        cfg.API.MePath,
			Logout:    cfg.API.LogoutPath,
			Login:     cfg.API.LoginPath,
			Register:  cfg.API.RegisterPath,
			VerifyOTP: cfg.API.VerifyOTPPath,
		}),
		session.WithLogger(log),
	)

	a := &app{
		cfg:     cfg,
		logger:  log,
		out:     o.out,
		jar:     jar,
		secrets: o.secrets,
		client:  client,
		router:  shell.NewRouter(shell.RouteLanding),
	}

	a.store = authstore.New(
		client,
		authstore.WithNavigator(a.router),
		authstore.WithSignInRoute(cfg.Session.SignInRoute),
		authstore.WithLogger(log),
		authstore.WithObserver(authstore.ObserverFunc(a.recordFetch)),
	)

	return a, nil
}

func (a *app) recordFetch(ev authstore.FetchEvent) {
	if !ev.Applied {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastFetch = &ev
}

// lastOutcome returns the outcome of the most recent applied fetch
func (a *app) lastOutcome() authstore.Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastFetch == nil {
		return ""
	}
	return a.lastFetch.Outcome
}

// close tears down the store and persists whatever the jar now holds
func (a *app) close() {
	a.store.Close()
	if err := a.jar.Save(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to persist session cookie")
	}
}

// printState describes a settled state to the user
func (a *app) printState(st authstore.State) {
	switch {
	case st.User != nil:
		fmt.Fprintf(a.out, "Signed in as %s (%s)\n", st.User.DisplayName(), st.User.Email)
		if st.User.IsAdmin {
			fmt.Fprintln(a.out, "  Role: Admin")
		}
	case st.IsLoading:
		fmt.Fprintln(a.out, "Still checking your session...")
	case a.lastOutcome() == authstore.OutcomeNetworkError:
		fmt.Fprintf(a.out, "Could not reach %s; showing you as signed out\n", a.client.BaseURL())
	default:
		fmt.Fprintln(a.out, "Not signed in")
	}
}

// requestContext bounds one network operation by the configured timeout
func (a *app) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.cfg.API.Timeout)
}
