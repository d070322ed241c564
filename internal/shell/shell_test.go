package shell

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynooboo/storefront/internal/authstore"
	"github.com/dynooboo/storefront/internal/session"
)

var (
	ann   = &session.User{ID: "u1", Email: "ann@example.com", Name: "Ann"}
	admin = &session.User{ID: "u2", Email: "root@example.com", IsAdmin: true}
)

type stubClient struct {
	mu        sync.Mutex
	user      *session.User
	logoutErr error
}

func (c *stubClient) setUser(u *session.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = u
}

func (c *stubClient) FetchCurrentUser(ctx context.Context) (session.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return session.Result{Kind: session.KindUnauthenticated, Reason: session.ReasonUnauthorized, Status: http.StatusUnauthorized}, nil
	}
	u := *c.user
	return session.Result{Kind: session.KindAuthenticated, User: &u, Status: http.StatusOK}, nil
}

func (c *stubClient) Logout(ctx context.Context) error {
	return c.logoutErr
}

func newTestShell(t *testing.T, user *session.User) (*Shell, *authstore.Store, *stubClient) {
	t.Helper()

	client := &stubClient{user: user}
	router := NewRouter(RouteLanding)
	store := authstore.New(client, authstore.WithNavigator(router))
	t.Cleanup(store.Close)

	store.Initialize(context.Background())
	return New(store, router, nil, zerolog.Nop()), store, client
}

func TestNavPanel(t *testing.T) {
	tests := []struct {
		name        string
		state       authstore.State
		greeting    string
		actions     []string
		adminListed bool
	}{
		{
			name:     "loading",
			state:    authstore.State{IsLoading: true},
			greeting: "Checking your session...",
		},
		{
			name:     "anonymous",
			state:    authstore.State{},
			greeting: "Haven't signed yet?",
			actions:  []string{"Sign in", "Sign up"},
		},
		{
			name:     "signed in",
			state:    authstore.State{User: ann},
			greeting: "Hello, Ann",
			actions:  []string{"Log out"},
		},
		{
			name:     "refreshing keeps the user",
			state:    authstore.State{User: ann, IsLoading: true},
			greeting: "Hello, Ann",
			actions:  []string{"Log out"},
		},
		{
			name:        "admin",
			state:       authstore.State{User: admin},
			greeting:    "Hello, root@example.com",
			actions:     []string{"Log out"},
			adminListed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NavPanel(tt.state)
			assert.Equal(t, tt.greeting, p.Greeting)

			var actions []string
			for _, a := range p.Actions {
				actions = append(actions, a.Label)
			}
			assert.Equal(t, tt.actions, actions)

			hasAdmin := false
			for _, item := range p.Items {
				if item.Route == RouteAdmin {
					hasAdmin = true
				}
			}
			assert.Equal(t, tt.adminListed, hasAdmin)
			assert.Len(t, p.Entries(), len(p.Actions)+len(p.Items))
		})
	}
}

func TestPanelRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NavPanel(authstore.State{}).Render(&buf))

	out := buf.String()
	assert.Contains(t, out, "Haven't signed yet?")
	assert.Contains(t, out, "Sign in / Sign up")
	assert.Contains(t, out, "  - Order Catalog")
}

func TestGuards(t *testing.T) {
	tests := []struct {
		name  string
		guard Guard
		state authstore.State
		want  Decision
	}{
		{"user loading", RequireUser, authstore.State{IsLoading: true}, DecisionWait},
		{"user anonymous", RequireUser, authstore.State{}, DecisionRedirectSignIn},
		{"user signed in", RequireUser, authstore.State{User: ann}, DecisionAllow},
		{"user refreshing", RequireUser, authstore.State{User: ann, IsLoading: true}, DecisionAllow},
		{"admin loading", AdminGuard, authstore.State{IsLoading: true}, DecisionWait},
		{"admin refreshing", AdminGuard, authstore.State{User: admin, IsLoading: true}, DecisionWait},
		{"admin anonymous", AdminGuard, authstore.State{}, DecisionRedirectSignIn},
		{"admin as customer", AdminGuard, authstore.State{User: ann}, DecisionForbidden},
		{"admin as admin", AdminGuard, authstore.State{User: admin}, DecisionAllow},
		{"cart anonymous", CartGate, authstore.State{}, DecisionRedirectSignIn},
		{"cart loading", CartGate, authstore.State{IsLoading: true}, DecisionWait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.guard(tt.state), "got %s", tt.guard(tt.state))
		})
	}
}

func TestGuardFor(t *testing.T) {
	assert.NotNil(t, GuardFor(RouteAdmin))
	assert.NotNil(t, GuardFor(RouteCart))
	assert.NotNil(t, GuardFor(RouteWishlist))
	assert.Nil(t, GuardFor(RouteProducts))
	assert.Nil(t, GuardFor(RouteLanding))
}

func TestOpen(t *testing.T) {
	sh, _, _ := newTestShell(t, nil)
	assert.Equal(t, DecisionRedirectSignIn, sh.Open(RouteWishlist))
	assert.Equal(t, RouteSignIn, sh.Router().Current())

	assert.Equal(t, DecisionAllow, sh.Open(RouteProducts))
	assert.Equal(t, RouteProducts, sh.Router().Current())

	sh, _, _ = newTestShell(t, ann)
	assert.Equal(t, DecisionForbidden, sh.Open(RouteAdmin))
	assert.Equal(t, RouteLanding, sh.Router().Current())
	assert.Equal(t, DecisionAllow, sh.Open(RouteCart))

	sh, _, _ = newTestShell(t, admin)
	assert.Equal(t, DecisionAllow, sh.Open(RouteAdmin))
	assert.Equal(t, RouteAdmin, sh.Router().Current())
}

func TestAddToCart(t *testing.T) {
	sh, _, _ := newTestShell(t, nil)
	sh.Open(RouteProducts)
	assert.Equal(t, DecisionRedirectSignIn, sh.AddToCart("p1"))
	assert.Equal(t, RouteSignIn, sh.Router().Current())

	sh, _, _ = newTestShell(t, ann)
	sh.Open(RouteProducts)
	assert.Equal(t, DecisionAllow, sh.AddToCart("p1"))
	assert.Equal(t, RouteProducts, sh.Router().Current())
}

func TestAddToCart_WaitsWhileLoading(t *testing.T) {
	router := NewRouter(RouteProducts)
	store := authstore.New(&stubClient{})
	defer store.Close()

	sh := New(store, router, nil, zerolog.Nop())
	assert.Equal(t, DecisionWait, sh.AddToCart("p1"))
	assert.Equal(t, RouteProducts, router.Current())
}

func TestLogout(t *testing.T) {
	sh, store, _ := newTestShell(t, ann)
	sh.Open(RouteCart)

	require.NoError(t, sh.Logout(context.Background()))
	assert.Nil(t, store.Snapshot().User)
	assert.Equal(t, RouteSignIn, sh.Router().Current())
}

func TestLogout_FailureKeepsUser(t *testing.T) {
	sh, store, client := newTestShell(t, ann)
	client.logoutErr = &session.LogoutError{Status: http.StatusBadGateway}
	sh.Open(RouteCart)

	err := sh.Logout(context.Background())
	assert.True(t, errors.Is(err, session.ErrLogoutFailed))
	assert.NotNil(t, store.Snapshot().User)
	assert.Equal(t, RouteCart, sh.Router().Current())
}

func TestRun_EnforcesOnSessionChange(t *testing.T) {
	client := &stubClient{user: ann}
	router := NewRouter(RouteCart)
	store := authstore.New(client, authstore.WithNavigator(router))
	defer store.Close()

	var out bytes.Buffer
	var mu sync.Mutex
	var greetings []string
	sh := New(store, router, &out, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- sh.Run(ctx, func(st authstore.State, p Panel) {
			mu.Lock()
			defer mu.Unlock()
			greetings = append(greetings, p.Greeting)
		})
	}()

	store.Initialize(ctx)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(greetings) > 0 && greetings[len(greetings)-1] == "Hello, Ann"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, RouteCart, router.Current())

	// The session expires server-side.
	client.setUser(nil)
	store.Refresh(ctx)
	require.Eventually(t, func() bool {
		return router.Current() == RouteSignIn
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRun_StopsWhenStoreCloses(t *testing.T) {
	store := authstore.New(&stubClient{})
	sh := New(store, NewRouter(RouteLanding), nil, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- sh.Run(context.Background(), nil)
	}()

	store.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRouter(t *testing.T) {
	r := NewRouter(RouteLanding)

	var changes [][2]string
	r.OnChange(func(from, to string) {
		changes = append(changes, [2]string{from, to})
	})

	r.Redirect(RouteProducts)
	r.Redirect(RouteProducts)
	r.Redirect(RouteSignIn)

	assert.Equal(t, RouteSignIn, r.Current())
	assert.Equal(t, []string{RouteLanding, RouteProducts, RouteProducts, RouteSignIn}, r.History())
	assert.Equal(t, [][2]string{{RouteLanding, RouteProducts}, {RouteProducts, RouteSignIn}}, changes)
}
