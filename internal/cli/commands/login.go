package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dynooboo/storefront/internal/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set DYNOOBOO_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set DYNOOBOO_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(ctx context.Context, email, password string, opts ...Option) error {
	// Check for environment variables (useful for scripts)
	if email == "" {
		email = os.Getenv("DYNOOBOO_EMAIL")
	}
	if password == "" {
		password = os.Getenv("DYNOOBOO_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or DYNOOBOO_EMAIL env var)")
	}

	if password == "" {
		var err error
		password, err = promptPassword("Password: ")
		if err != nil {
			return err
		}
	}

	a, err := setup(opts...)
	if err != nil {
		return err
	}
	defer a.close()

	return a.signIn(ctx, email, password)
}

// signIn submits credentials, then refreshes the store so the new cookie is
// reflected in the session state.
func (a *app) signIn(ctx context.Context, email, password string) error {
	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.client.Login(reqCtx, session.SignInForm{Email: email, Password: password}); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	st := a.store.Refresh(reqCtx)
	if st.User == nil {
		a.printState(st)
		return fmt.Errorf("login succeeded but the session could not be confirmed")
	}

	fmt.Fprintln(a.out, "✓ Login successful!")
	a.printState(st)
	return nil
}

// promptPassword reads a password without echo when stdin is a terminal
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or DYNOOBOO_PASSWORD env var)")
	}

	fmt.Print(label)
	bytePassword, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}
