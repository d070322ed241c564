package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynooboo/storefront/internal/cli/credentials"
	"github.com/dynooboo/storefront/internal/config"
	"github.com/dynooboo/storefront/internal/testbackend"
)

// testEnv is one backend plus the persistent state CLI runs share
type testEnv struct {
	backend *testbackend.Backend
	cfg     *config.Config
	secrets *credentials.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	t.Setenv("DYNOOBOO_EMAIL", "")
	t.Setenv("DYNOOBOO_PASSWORD", "")

	backend := testbackend.New(zerolog.Nop())
	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.API.BaseURL = server.URL

	return &testEnv{
		backend: backend,
		cfg:     cfg,
		secrets: credentials.NewMemoryStore(),
	}
}

// opts returns options for one CLI run writing to out
func (e *testEnv) opts(out *bytes.Buffer) []Option {
	return []Option{
		WithConfig(e.cfg),
		WithSecretStore(e.secrets),
		WithOutput(out),
		WithLogger(zerolog.Nop()),
	}
}

// pending reads the sign-up awaiting verification the way a CLI run would
func (e *testEnv) pending(t *testing.T) string {
	t.Helper()
	a, err := setup(e.opts(&bytes.Buffer{})...)
	require.NoError(t, err)
	defer a.close()

	email, err := a.pendingSignUp()
	require.NoError(t, err)
	return email
}

func (e *testEnv) whoami(t *testing.T) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, runWhoami(context.Background(), e.opts(&out)...))
	return out.String()
}

func TestWhoami_Anonymous(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, "Not signed in\n", env.whoami(t))
}

func TestWhoami_BackendDown(t *testing.T) {
	env := newTestEnv(t)

	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	env.cfg.API.BaseURL = server.URL

	assert.Contains(t, env.whoami(t), "Could not reach "+server.URL)
}

func TestLoginWhoamiLogout(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddUser("ann@example.com", "secret123", "Ann", true)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runLogin(ctx, "ann@example.com", "secret123", env.opts(&out)...))
	assert.Contains(t, out.String(), "Login successful")
	assert.Contains(t, out.String(), "Signed in as Ann (ann@example.com)")

	// A fresh run picks the session up from the secret store.
	who := env.whoami(t)
	assert.Contains(t, who, "Signed in as Ann (ann@example.com)")
	assert.Contains(t, who, "Role: Admin")

	out.Reset()
	require.NoError(t, runLogout(ctx, env.opts(&out)...))
	assert.Contains(t, out.String(), "redirected to /signin")

	assert.Equal(t, "Not signed in\n", env.whoami(t))
}

func TestLogin_EnvCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddUser("ann@example.com", "secret123", "", false)
	t.Setenv("DYNOOBOO_EMAIL", "ann@example.com")
	t.Setenv("DYNOOBOO_PASSWORD", "secret123")

	var out bytes.Buffer
	require.NoError(t, runLogin(context.Background(), "", "", env.opts(&out)...))
	assert.Contains(t, out.String(), "Signed in as ann@example.com (ann@example.com)")
}

func TestLogin_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddUser("ann@example.com", "secret123", "Ann", false)
	ctx := context.Background()

	var out bytes.Buffer
	err := runLogin(ctx, "", "secret123", env.opts(&out)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")

	err = runLogin(ctx, "ann@example.com", "wrong", env.opts(&out)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid email or password")

	assert.Equal(t, "Not signed in\n", env.whoami(t))
}

func TestLogout_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddUser("ann@example.com", "secret123", "Ann", false)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runLogin(ctx, "ann@example.com", "secret123", env.opts(&out)...))

	env.backend.FailLogout(http.StatusInternalServerError)
	err := runLogout(ctx, env.opts(&out)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to log out")

	assert.Contains(t, env.whoami(t), "Signed in as Ann")
}

func TestSignupAndVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runSignup(ctx, "new@example.com", "pw123456", "pw123456", env.opts(&out)...))
	assert.Contains(t, out.String(), "4-digit code to new@example.com")

	assert.Equal(t, "new@example.com", env.pending(t))

	code, ok := env.backend.PendingOTP("new@example.com")
	require.True(t, ok)

	out.Reset()
	require.NoError(t, runVerifyOTP(ctx, code, env.opts(&out)...))
	assert.Contains(t, out.String(), "Email verified")
	assert.Contains(t, out.String(), "Signed in as new@example.com")

	assert.Empty(t, env.pending(t))
}

func TestSignup_PasswordMismatch(t *testing.T) {
	env := newTestEnv(t)

	var out bytes.Buffer
	err := runSignup(context.Background(), "new@example.com", "pw123456", "different", env.opts(&out)...)
	require.Error(t, err)
	assert.Zero(t, env.backend.Hits("/api/users/register"))
}

func TestVerifyOTP_NoPendingSignup(t *testing.T) {
	env := newTestEnv(t)

	var out bytes.Buffer
	err := runVerifyOTP(context.Background(), "1234", env.opts(&out)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dynooboo signup")
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runSignup(ctx, "new@example.com", "pw123456", "pw123456", env.opts(&out)...))

	code, _ := env.backend.PendingOTP("new@example.com")
	wrong := "0000"
	if code == wrong {
		wrong = "1111"
	}

	err := runVerifyOTP(ctx, wrong, env.opts(&out)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid verification code")

	assert.Equal(t, "new@example.com", env.pending(t))
}

func TestAddToCart(t *testing.T) {
	env := newTestEnv(t)
	env.backend.AddUser("ann@example.com", "secret123", "Ann", false)
	ctx := context.Background()

	var out bytes.Buffer
	err := runAddToCart(ctx, "p-42", env.opts(&out)...)
	require.Error(t, err)
	assert.Contains(t, out.String(), "redirected to /signin")

	require.NoError(t, runLogin(ctx, "ann@example.com", "secret123", env.opts(&out)...))

	out.Reset()
	require.NoError(t, runAddToCart(ctx, "p-42", env.opts(&out)...))
	assert.Contains(t, out.String(), "Added p-42 to your cart")
}
