package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dynooboo/storefront/internal/shell"
)

// NewAddToCartCmd creates the add-to-cart command
func NewAddToCartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-to-cart <product-id>",
		Short: "Add a product to your cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddToCart(cmd.Context(), args[0])
		},
	}
}

func runAddToCart(ctx context.Context, productID string, opts ...Option) error {
	a, err := setup(opts...)
	if err != nil {
		return err
	}
	defer a.close()

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	a.store.Initialize(reqCtx)

	sh := shell.New(a.store, a.router, nil, a.logger)
	switch d := sh.AddToCart(productID); d {
	case shell.DecisionAllow:
		fmt.Fprintf(a.out, "✓ Added %s to your cart\n", productID)
		return nil
	case shell.DecisionRedirectSignIn:
		fmt.Fprintf(a.out, "Sign in to add items to your cart (redirected to %s)\n", a.router.Current())
		return fmt.Errorf("not signed in")
	default:
		return fmt.Errorf("could not add to cart: session state is %s", d)
	}
}
