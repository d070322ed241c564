package session

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// User is the authenticated identity returned by the backend
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	IsAdmin   bool   `json:"isAdmin"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// DisplayName returns the name if present, otherwise the email
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Shape identifies which response layout a /me body used
type Shape int

const (
	ShapeUnrecognized Shape = iota
	ShapeBare                // {"id": ..., "email": ...}
	ShapeWrapped             // {"user": {"id": ..., "email": ...}}
)

func (s Shape) String() string {
	switch s {
	case ShapeBare:
		return "bare"
	case ShapeWrapped:
		return "wrapped"
	default:
		return "unrecognized"
	}
}

// wireUser accepts both the camelCase and snake_case field spellings
// backends have used for the same record.
type wireUser struct {
	ID             json.RawMessage `json:"id"`
	Email          *string         `json:"email"`
	Name           *string         `json:"name"`
	IsAdmin        *bool           `json:"isAdmin"`
	IsAdminSnake   *bool           `json:"is_admin"`
	CreatedAt      json.RawMessage `json:"createdAt"`
	CreatedAtSnake json.RawMessage `json:"created_at"`
	UpdatedAt      json.RawMessage `json:"updatedAt"`
	UpdatedAtSnake json.RawMessage `json:"updated_at"`
}

// Normalize converts a /me response body into a User.
//
// A wrapped body ({"user": {...}}) is tried first, then the bare object.
// Anything else that is valid JSON yields ShapeUnrecognized with a zero User.
// An error is returned only when body is not JSON at all.
func Normalize(body []byte) (User, Shape, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return User{}, ShapeUnrecognized, fmt.Errorf("response body is not valid JSON (%d bytes)", len(body))
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		// Valid JSON but not an object: array, string, number, null.
		return User{}, ShapeUnrecognized, nil
	}

	if raw, ok := top["user"]; ok {
		if u, ok := decodeUser(raw); ok {
			return u, ShapeWrapped, nil
		}
	}

	if u, ok := decodeUser(body); ok {
		return u, ShapeBare, nil
	}

	return User{}, ShapeUnrecognized, nil
}

func decodeUser(raw []byte) (User, bool) {
	var w wireUser
	if err := json.Unmarshal(raw, &w); err != nil {
		return User{}, false
	}

	id, ok := identifier(w.ID)
	if !ok {
		return User{}, false
	}
	if w.Email == nil || *w.Email == "" {
		return User{}, false
	}

	u := User{
		ID:        id,
		Email:     *w.Email,
		CreatedAt: firstOpaque(w.CreatedAt, w.CreatedAtSnake),
		UpdatedAt: firstOpaque(w.UpdatedAt, w.UpdatedAtSnake),
	}
	if w.Name != nil {
		u.Name = *w.Name
	}
	switch {
	case w.IsAdmin != nil:
		u.IsAdmin = *w.IsAdmin
	case w.IsAdminSnake != nil:
		u.IsAdmin = *w.IsAdminSnake
	}

	return u, true
}

// identifier accepts a JSON string or number; numbers keep their literal text.
func identifier(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false
	}

	switch id := v.(type) {
	case string:
		return id, id != ""
	case json.Number:
		return id.String(), true
	default:
		return "", false
	}
}

func firstOpaque(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}
	return ""
}
