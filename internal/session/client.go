package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps how much of a response body is read
const maxBodyBytes = 1 << 20

// Paths holds the backend endpoints the client talks to
type Paths struct {
	Me        string
	Logout    string
	Login     string
	Register  string
	VerifyOTP string
}

// DefaultPaths returns the canonical /api/users endpoints
func DefaultPaths() Paths {
	return Paths{
		Me:        "/api/users/me",
		Logout:    "/api/users/logout",
		Login:     "/api/users/login",
		Register:  "/api/users/register",
		VerifyOTP: "/api/users/verify-otp",
	}
}

// Client talks to the storefront's user endpoints.
//
// The session credential is an HttpOnly cookie: it is attached and stored by
// the http.Client's cookie jar, and the Client never reads or writes it.
type Client struct {
	baseURL    string
	paths      Paths
	httpClient *http.Client
	logger     zerolog.Logger
	validate   *validator.Validate
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client; its Jar carries the session cookie
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithPaths overrides the endpoint paths
func WithPaths(paths Paths) Option {
	return func(c *Client) {
		c.paths = paths
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new API client for the given base URL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		paths:   DefaultPaths(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:   zerolog.Nop(),
		validate: validator.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchCurrentUser asks the backend who is logged in.
//
// 401, other non-2xx statuses, unrecognized bodies and transport failures are
// reported through Result. The error is non-nil only when the request cannot
// be built or a 2xx body is not JSON (ErrMalformedResponse).
func (c *Client) FetchCurrentUser(ctx context.Context) (Result, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.paths.Me, nil)
	if err != nil {
		return Result{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Kind: KindNetworkError, Cause: err}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

		reason := ReasonStatus
		if resp.StatusCode == http.StatusUnauthorized {
			reason = ReasonUnauthorized
		}
		return Result{Kind: KindUnauthenticated, Reason: reason, Status: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{Kind: KindNetworkError, Status: resp.StatusCode, Cause: fmt.Errorf("failed to read response: %w", err)}, nil
	}

	user, shape, err := Normalize(body)
	if err != nil {
		return Result{Status: resp.StatusCode}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if shape == ShapeUnrecognized {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("request_id", req.Header.Get("X-Request-ID")).
			Msg("Unrecognized /me response shape, treating as anonymous")
		return Result{Kind: KindUnauthenticated, Reason: ReasonMalformed, Status: resp.StatusCode}, nil
	}

	return Result{Kind: KindAuthenticated, User: &user, Shape: shape, Status: resp.StatusCode}, nil
}

// Logout asks the backend to invalidate the session credential.
// It does not touch any local state.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, c.paths.Logout, nil)
	if err != nil {
		return &LogoutError{Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &LogoutError{Cause: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &LogoutError{
			Status:  resp.StatusCode,
			Message: errorMessage(body, http.StatusText(resp.StatusCode)),
		}
	}

	return nil
}

// newRequest builds a credentialed request against the backend
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", ulid.Make().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}
