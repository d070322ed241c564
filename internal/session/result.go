package session

// Kind is the normalized outcome of a current-user fetch
type Kind int

const (
	KindUnauthenticated Kind = iota
	KindAuthenticated
	KindNetworkError
)

func (k Kind) String() string {
	switch k {
	case KindAuthenticated:
		return "authenticated"
	case KindNetworkError:
		return "network_error"
	default:
		return "unauthenticated"
	}
}

// Reason explains an unauthenticated result
type Reason int

const (
	ReasonNone Reason = iota
	ReasonUnauthorized // 401
	ReasonStatus       // any other non-2xx
	ReasonMalformed    // 2xx with an unrecognized body shape
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthorized:
		return "unauthorized"
	case ReasonStatus:
		return "status"
	case ReasonMalformed:
		return "malformed"
	default:
		return "none"
	}
}

// Result is what FetchCurrentUser reports for expected outcomes.
// User is set only when Kind is KindAuthenticated; Cause only for KindNetworkError.
type Result struct {
	Kind   Kind
	User   *User
	Shape  Shape
	Reason Reason
	Status int
	Cause  error
}

// Authenticated reports whether the result carries a user
func (r Result) Authenticated() bool {
	return r.Kind == KindAuthenticated && r.User != nil
}
