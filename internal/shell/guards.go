package shell

import "github.com/dynooboo/storefront/internal/authstore"

// Decision is what a guard tells the UI to do
type Decision int

const (
	DecisionWait Decision = iota // identity not known yet
	DecisionAllow
	DecisionRedirectSignIn
	DecisionForbidden
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionRedirectSignIn:
		return "redirect_sign_in"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "wait"
	}
}

// Guard decides whether a state may proceed
type Guard func(authstore.State) Decision

// RequireUser allows any signed-in user. It never sends anyone to sign in
// while the session is still loading.
func RequireUser(st authstore.State) Decision {
	switch {
	case st.User != nil:
		return DecisionAllow
	case st.IsLoading:
		return DecisionWait
	default:
		return DecisionRedirectSignIn
	}
}

// AdminGuard gates the admin area
func AdminGuard(st authstore.State) Decision {
	if st.IsLoading {
		return DecisionWait
	}
	if st.User == nil {
		return DecisionRedirectSignIn
	}
	if !st.User.IsAdmin {
		return DecisionForbidden
	}
	return DecisionAllow
}

// CartGate gates add-to-cart on product detail pages
func CartGate(st authstore.State) Decision {
	return RequireUser(st)
}

// GuardFor returns the guard protecting route, or nil for public routes
func GuardFor(route string) Guard {
	switch route {
	case RouteAdmin:
		return AdminGuard
	case RouteCart, RouteWishlist:
		return RequireUser
	default:
		return nil
	}
}
