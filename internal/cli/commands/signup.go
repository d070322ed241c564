package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/dynooboo/storefront/internal/cli/credentials"
	"github.com/dynooboo/storefront/internal/session"
)

// NewSignupCmd creates the signup command
func NewSignupCmd() *cobra.Command {
	var email, password, confirm string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Long: `Create an account. The store emails a verification code,
which is confirmed with 'dynooboo verify-otp <code>'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignup(cmd.Context(), email, password, confirm)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set DYNOOBOO_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (will prompt if not provided)")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "Password confirmation (will prompt if not provided)")

	return cmd
}

func runSignup(ctx context.Context, email, password, confirm string, opts ...Option) error {
	if email == "" {
		email = os.Getenv("DYNOOBOO_EMAIL")
	}
	if email == "" {
		return fmt.Errorf("email is required (use --email flag or DYNOOBOO_EMAIL env var)")
	}

	var err error
	if password == "" {
		if password, err = promptPassword("Password: "); err != nil {
			return err
		}
	}
	if confirm == "" {
		if confirm, err = promptPassword("Confirm password: "); err != nil {
			return err
		}
	}

	a, err := setup(opts...)
	if err != nil {
		return err
	}
	defer a.close()

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	form := session.SignUpForm{Email: email, Password: password, ConfirmPassword: confirm}
	if err := a.client.Register(reqCtx, form); err != nil {
		return fmt.Errorf("sign up failed: %w", err)
	}

	if err := a.setPendingSignUp(email); err != nil {
		return fmt.Errorf("failed to remember pending sign-up: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Account created. We sent a %d-digit code to %s\n", session.OTPLength, email)
	fmt.Fprintln(a.out, "  Confirm it with: dynooboo verify-otp <code>")
	return nil
}

// The email awaiting verification is kept next to the session cookie, per
// backend, until verify-otp succeeds.
func (a *app) pendingSignUpKey() string {
	host := a.cfg.API.BaseURL
	if u, err := url.Parse(a.cfg.API.BaseURL); err == nil {
		host = u.Host
	}
	return "pending-signup-" + host
}

func (a *app) pendingSignUp() (string, error) {
	email, err := a.secrets.Get(a.pendingSignUpKey())
	if errors.Is(err, credentials.ErrNotFound) {
		return "", nil
	}
	return email, err
}

func (a *app) setPendingSignUp(email string) error {
	return a.secrets.Set(a.pendingSignUpKey(), email)
}

func (a *app) clearPendingSignUp() error {
	return a.secrets.Delete(a.pendingSignUpKey())
}
