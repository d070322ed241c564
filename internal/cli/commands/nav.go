package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/dynooboo/storefront/internal/shell"
)

const quitLabel = "Quit"

// NewNavCmd creates the interactive nav command
func NewNavCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nav",
		Short: "Browse the store interactively",
		Long: `Open the storefront navigation panel. The panel follows your
session: it greets you once signed in, and guarded pages send you to
sign in when needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNav(cmd.Context())
		},
	}
}

func runNav(ctx context.Context, opts ...Option) error {
	a, err := setup(opts...)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sh := shell.New(a.store, a.router, nil, a.logger)
	a.router.OnChange(func(from, to string) {
		a.logger.Debug().Str("from", from).Str("to", to).Msg("Route changed")
	})

	// Keep guards enforced when a background refresh changes the session.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sh.Run(ctx, nil)
	}()
	defer func() {
		cancel()
		<-done
	}()

	initCtx, initCancel := a.requestContext(ctx)
	a.store.Initialize(initCtx)
	initCancel()

	if err := a.store.StartRevalidation(a.cfg.Revalidate.Schedule, a.cfg.API.Timeout); err != nil {
		return err
	}

	for {
		st := a.store.Snapshot()
		panel := shell.NavPanel(st)

		fmt.Fprintln(a.out)
		if err := panel.Render(a.out); err != nil {
			return err
		}

		item, err := selectEntry(panel, a.router.Current())
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}
		if item.Label == quitLabel {
			return nil
		}

		if err := a.navigate(ctx, sh, item); err != nil {
			fmt.Fprintf(a.out, "✗ %v\n", err)
		}
	}
}

// navigate acts on one selected panel entry
func (a *app) navigate(ctx context.Context, sh *shell.Shell, item shell.NavItem) error {
	switch item.Route {
	case shell.RouteSignIn:
		email, password, err := promptCredentials()
		if err != nil {
			return err
		}
		return a.signIn(ctx, email, password)

	case shell.RouteSignUp:
		fmt.Fprintln(a.out, "Create an account with: dynooboo signup --email <email>")
		return nil

	case shell.RouteLogout:
		reqCtx, cancel := a.requestContext(ctx)
		defer cancel()
		if err := sh.Logout(reqCtx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "✓ Logged out")
		return nil

	case shell.RouteProducts:
		sh.Open(item.Route)
		return a.browseProducts(sh)
	}

	d := sh.Open(item.Route)
	switch d {
	case shell.DecisionRedirectSignIn:
		fmt.Fprintf(a.out, "%s needs you to sign in\n", item.Label)
	case shell.DecisionForbidden:
		fmt.Fprintf(a.out, "%s is for admins only\n", item.Label)
	case shell.DecisionWait:
		fmt.Fprintln(a.out, "Still checking your session, try again in a moment")
	default:
		fmt.Fprintf(a.out, "Opened %s\n", item.Label)
	}
	return nil
}

// browseProducts asks for a product id and tries to add it to the cart
func (a *app) browseProducts(sh *shell.Shell) error {
	prompt := promptui.Prompt{
		Label: "Product ID to add to cart (empty to go back)",
	}
	productID, err := prompt.Run()
	if err != nil || productID == "" {
		return nil
	}

	switch sh.AddToCart(productID) {
	case shell.DecisionAllow:
		fmt.Fprintf(a.out, "✓ Added %s to your cart\n", productID)
	case shell.DecisionRedirectSignIn:
		fmt.Fprintln(a.out, "Sign in to add items to your cart")
	default:
		fmt.Fprintln(a.out, "Still checking your session, try again in a moment")
	}
	return nil
}

func selectEntry(panel shell.Panel, current string) (shell.NavItem, error) {
	items := append(panel.Entries(), shell.NavItem{Label: quitLabel})

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     fmt.Sprintf("You are on %s", current),
		Items:     items,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return shell.NavItem{}, err
	}
	return items[index], nil
}

func promptCredentials() (string, string, error) {
	emailPrompt := promptui.Prompt{
		Label: "Email",
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("email is required")
			}
			return nil
		},
	}
	email, err := emailPrompt.Run()
	if err != nil {
		return "", "", fmt.Errorf("sign in cancelled: %w", err)
	}

	passwordPrompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
	}
	password, err := passwordPrompt.Run()
	if err != nil {
		return "", "", fmt.Errorf("sign in cancelled: %w", err)
	}
	return email, password, nil
}
