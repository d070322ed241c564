package authstore

import "time"

// Outcome classifies a settled fetch for logs and telemetry.
// OutcomeNetworkError ("server down") is kept apart from
// OutcomeUnauthenticated ("nobody logged in").
type Outcome string

const (
	OutcomeAuthenticated   Outcome = "authenticated"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeMalformed       Outcome = "malformed"
	OutcomeNetworkError    Outcome = "network_error"
	OutcomeUnexpected      Outcome = "unexpected"
)

// FetchEvent describes one settled session fetch
type FetchEvent struct {
	Generation uint64
	Outcome    Outcome
	Status     int
	Err        error
	Applied    bool // false when a newer request superseded this one
	Duration   time.Duration
}

// Observer receives every settled fetch
type Observer interface {
	FetchSettled(FetchEvent)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(FetchEvent)

func (f ObserverFunc) FetchSettled(ev FetchEvent) {
	f(ev)
}
