package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dynooboo/storefront/internal/session"
)

// NewVerifyOTPCmd creates the verify-otp command
func NewVerifyOTPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-otp <code>",
		Short: "Confirm the code emailed after sign up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerifyOTP(cmd.Context(), args[0])
		},
	}
}

func runVerifyOTP(ctx context.Context, code string, opts ...Option) error {
	a, err := setup(opts...)
	if err != nil {
		return err
	}
	defer a.close()

	email, err := a.pendingSignUp()
	if err != nil {
		return fmt.Errorf("failed to load pending sign-up: %w", err)
	}
	if email == "" {
		return fmt.Errorf("no sign-up is waiting for verification. Run 'dynooboo signup' first")
	}

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.client.VerifyOTP(reqCtx, session.OTPForm{Email: email, Code: code}); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if err := a.clearPendingSignUp(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to clear pending sign-up")
	}

	fmt.Fprintln(a.out, "✓ Email verified!")
	a.printState(a.store.Refresh(reqCtx))
	return nil
}
