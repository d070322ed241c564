// Package authstore owns the client-side session state: who is logged in and
// whether that is still being determined.
//
// Every fetch is stamped with a generation number when it is issued. A
// settling fetch is applied only if its generation is still the latest one,
// so a slow, superseded response can never overwrite a newer result.
// A successful logout also takes a new generation, which turns every fetch
// still in flight into a stale one.
package authstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/dynooboo/storefront/internal/session"
)

// State is the session as consumers see it.
// IsLoading means the identity is not known yet; it never means anonymous.
type State struct {
	User      *session.User
	IsLoading bool
}

// IsAuthenticated reports whether a user is present
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// SessionClient is the network side of the store
type SessionClient interface {
	FetchCurrentUser(ctx context.Context) (session.Result, error)
	Logout(ctx context.Context) error
}

// Navigator performs the client-side redirect after logout
type Navigator interface {
	Redirect(path string)
}

// Store holds the authoritative State for one application instance
type Store struct {
	client      SessionClient
	navigator   Navigator
	signInRoute string
	observer    Observer
	logger      zerolog.Logger

	mu          sync.Mutex
	state       State
	generation  uint64
	initialized bool
	closed      bool
	subs        map[uint64]chan State
	nextSubID   uint64
	stopCron    func()

	initGroup singleflight.Group
}

// Option configures a Store
type Option func(*Store)

// WithNavigator sets where Logout redirects
func WithNavigator(n Navigator) Option {
	return func(s *Store) {
		s.navigator = n
	}
}

// WithSignInRoute sets the route Logout redirects to (default "/signin")
func WithSignInRoute(route string) Option {
	return func(s *Store) {
		s.signInRoute = route
	}
}

// WithObserver registers a telemetry hook for settled fetches
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store in its initial {User: nil, IsLoading: true} state
func New(client SessionClient, opts ...Option) *Store {
	s := &Store{
		client:      client,
		signInRoute: "/signin",
		logger:      zerolog.Nop(),
		state:       State{IsLoading: true},
		subs:        make(map[uint64]chan State),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Snapshot returns the current state without blocking on the network
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize performs the first session fetch.
//
// Concurrent callers share one in-flight fetch; calls after it settled
// return the current state without touching the network. If ctx is done
// before the shared fetch settles, the current snapshot is returned and the
// fetch keeps running.
func (s *Store) Initialize(ctx context.Context) State {
	s.mu.Lock()
	if s.initialized || s.closed {
		st := s.state
		s.mu.Unlock()
		return st
	}
	s.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.initGroup.DoChan("initialize", func() (interface{}, error) {
		s.mu.Lock()
		if s.initialized {
			st := s.state
			s.mu.Unlock()
			return st, nil
		}
		s.mu.Unlock()

		st := s.fetch(fetchCtx)

		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()

		return st, nil
	})

	select {
	case res := <-ch:
		return res.Val.(State)
	case <-ctx.Done():
		return s.Snapshot()
	}
}

// Refresh re-fetches the session. The previous user stays visible while
// IsLoading is true. The returned state is the store's state once this
// fetch settled, which reflects a newer request if one was issued meanwhile.
func (s *Store) Refresh(ctx context.Context) State {
	return s.fetch(ctx)
}

// Logout invalidates the session on the server. On success the user is
// cleared, pending fetches are discarded and the navigator is sent to the
// sign-in route. On failure the state is left as it was and the error
// (matching session.ErrLogoutFailed) is returned.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Logout failed, session state unchanged")
		return fmt.Errorf("failed to log out: %w", err)
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.setLocked(State{User: nil, IsLoading: false})
	s.mu.Unlock()

	s.logger.Info().Uint64("generation", gen).Msg("Logged out")

	if s.navigator != nil {
		s.navigator.Redirect(s.signInRoute)
	}

	return nil
}

// Close tears the store down: subscriptions are closed, revalidation stops,
// and later fetches are no longer applied.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stop := s.stopCron
	s.stopCron = nil
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// fetch runs one issue/settle cycle under a new generation. A closed store
// is returned as is.
func (s *Store) fetch(ctx context.Context) State {
	s.mu.Lock()
	if s.closed {
		st := s.state
		s.mu.Unlock()
		return st
	}
	s.generation++
	gen := s.generation
	s.setLocked(State{User: s.state.User, IsLoading: true})
	s.mu.Unlock()

	start := time.Now()
	res, err := s.client.FetchCurrentUser(ctx)

	ev := FetchEvent{
		Generation: gen,
		Status:     res.Status,
		Duration:   time.Since(start),
	}

	var user *session.User
	switch {
	case err != nil:
		ev.Outcome = OutcomeUnexpected
		ev.Err = err
	case res.Authenticated():
		ev.Outcome = OutcomeAuthenticated
		u := *res.User
		user = &u
	case res.Kind == session.KindNetworkError:
		ev.Outcome = OutcomeNetworkError
		ev.Err = res.Cause
	case res.Reason == session.ReasonMalformed:
		ev.Outcome = OutcomeMalformed
	default:
		ev.Outcome = OutcomeUnauthenticated
	}

	s.mu.Lock()
	if gen == s.generation && !s.closed {
		s.setLocked(State{User: user, IsLoading: false})
		ev.Applied = true
	}
	st := s.state
	s.mu.Unlock()

	s.report(ev)

	return st
}

// setLocked replaces the state and notifies subscribers. Caller holds s.mu.
func (s *Store) setLocked(st State) {
	s.state = st
	for _, ch := range s.subs {
		offer(ch, st)
	}
}

// report logs the settlement and forwards it to the observer
func (s *Store) report(ev FetchEvent) {
	var e *zerolog.Event
	switch ev.Outcome {
	case OutcomeNetworkError, OutcomeMalformed:
		e = s.logger.Warn()
	case OutcomeUnexpected:
		e = s.logger.Error()
	default:
		e = s.logger.Debug()
	}

	e.Uint64("generation", ev.Generation).
		Str("outcome", string(ev.Outcome)).
		Int("status", ev.Status).
		Bool("applied", ev.Applied).
		Dur("duration", ev.Duration).
		Err(ev.Err).
		Msg("Session fetch settled")

	if s.observer != nil {
		s.observer.FetchSettled(ev)
	}
}
