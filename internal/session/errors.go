package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedResponse is returned when a 2xx /me body is not JSON
	ErrMalformedResponse = errors.New("malformed response")
	// ErrLogoutFailed matches every *LogoutError
	ErrLogoutFailed = errors.New("logout failed")
)

// LogoutError describes a logout the server did not confirm
type LogoutError struct {
	Status  int
	Message string
	Cause   error
}

func (e *LogoutError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("logout failed: %v", e.Cause)
	case e.Message != "":
		return fmt.Sprintf("logout failed (status %d): %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("logout failed (status %d)", e.Status)
	}
}

func (e *LogoutError) Is(target error) bool {
	return target == ErrLogoutFailed
}

func (e *LogoutError) Unwrap() error {
	return e.Cause
}

// APIError is a non-2xx reply to a form submission (sign in, sign up, OTP)
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.Status, e.Message)
}

// errorMessage extracts {"error": "..."} from a response body, falling back
// to the raw text.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fallback
}
