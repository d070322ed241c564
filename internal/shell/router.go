package shell

import "sync"

// Routes used by the storefront shell
const (
	RouteLanding  = "/landing"
	RouteProducts = "/product"
	RouteWishlist = "/wishlist"
	RouteCatalog  = "/catalog"
	RouteContact  = "/contact"
	RouteCart     = "/cart"
	RouteAdmin    = "/admin"
	RouteSignIn   = "/signin"
	RouteSignUp   = "/signup"
	RouteOTP      = "/otp"
	RouteLogout   = "/logout"
)

// Router tracks the current client-side route. It satisfies
// authstore.Navigator, so the store can send it to the sign-in page.
type Router struct {
	mu       sync.Mutex
	current  string
	history  []string
	onChange func(from, to string)
}

// NewRouter starts at the given route
func NewRouter(start string) *Router {
	return &Router{current: start, history: []string{start}}
}

// OnChange registers a callback invoked after every route change
func (r *Router) OnChange(fn func(from, to string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Redirect switches to path
func (r *Router) Redirect(path string) {
	r.mu.Lock()
	from := r.current
	r.current = path
	r.history = append(r.history, path)
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil && from != path {
		fn(from, path)
	}
}

// Current returns the active route
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// History returns every route visited, oldest first
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.history))
	copy(out, r.history)
	return out
}
