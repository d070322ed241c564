package shell

import (
	"fmt"
	"io"
	"strings"

	"github.com/dynooboo/storefront/internal/authstore"
)

// NavItem is one entry in the navigation panel
type NavItem struct {
	Label string
	Route string
}

// Panel is the rendered navigation panel
type Panel struct {
	Greeting string
	Actions  []NavItem
	Items    []NavItem
}

var baseItems = []NavItem{
	{Label: "Products", Route: RouteProducts},
	{Label: "Wishlist", Route: RouteWishlist},
	{Label: "Order Catalog", Route: RouteCatalog},
	{Label: "Contact Us", Route: RouteContact},
}

// NavPanel builds the panel for a session state.
// While loading no account actions are offered.
func NavPanel(st authstore.State) Panel {
	p := Panel{Items: append([]NavItem(nil), baseItems...)}

	switch {
	case st.IsLoading && st.User == nil:
		p.Greeting = "Checking your session..."
	case st.User == nil:
		p.Greeting = "Haven't signed yet?"
		p.Actions = []NavItem{
			{Label: "Sign in", Route: RouteSignIn},
			{Label: "Sign up", Route: RouteSignUp},
		}
	default:
		p.Greeting = fmt.Sprintf("Hello, %s", st.User.DisplayName())
		p.Actions = []NavItem{{Label: "Log out", Route: RouteLogout}}
		if st.User.IsAdmin {
			p.Items = append(p.Items, NavItem{Label: "Admin", Route: RouteAdmin})
		}
	}

	return p
}

// Entries returns actions followed by nav items
func (p Panel) Entries() []NavItem {
	out := make([]NavItem, 0, len(p.Actions)+len(p.Items))
	out = append(out, p.Actions...)
	return append(out, p.Items...)
}

// Render writes a plain-text version of the panel
func (p Panel) Render(w io.Writer) error {
	var b strings.Builder
	b.WriteString(p.Greeting)
	b.WriteString("\n")

	if len(p.Actions) > 0 {
		labels := make([]string, len(p.Actions))
		for i, a := range p.Actions {
			labels[i] = a.Label
		}
		b.WriteString(strings.Join(labels, " / "))
		b.WriteString("\n")
	}

	for _, item := range p.Items {
		fmt.Fprintf(&b, "  - %s\n", item.Label)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
