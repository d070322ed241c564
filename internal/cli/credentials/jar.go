// Package credentials is the terminal's stand-in for a browser cookie store.
// The session cookie lives in a Jar that survives between CLI runs by
// persisting itself in a SecretStore (the OS keyring by default).
// Nothing outside this package reads cookie values.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// storedCookie is a cookie as persisted between runs
type storedCookie struct {
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Domain   string        `json:"domain,omitempty"` // empty for host-only cookies
	Path     string        `json:"path"`
	Expires  time.Time     `json:"expires"` // zero for session cookies
	Secure   bool          `json:"secure,omitempty"`
	HttpOnly bool          `json:"http_only,omitempty"`
	SameSite http.SameSite `json:"same_site,omitempty"`
}

func (c storedCookie) id() string {
	return c.Name + ";" + c.Domain + ";" + c.Path
}

func (c storedCookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// Jar is an http.CookieJar scoped to one backend. Cookies the backend host
// sets are tracked with all their attributes so Save can persist them
// whatever path they are scoped to.
type Jar struct {
	store   SecretStore
	baseURL *url.URL
	key     string
	now     func() time.Time

	mu      sync.Mutex
	jar     *cookiejar.Jar
	tracked map[string]storedCookie
}

// NewJar creates a jar for baseURL and loads any cookies persisted for it
func NewJar(baseURL string, store SecretStore) (*Jar, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	j := &Jar{
		store:   store,
		baseURL: u,
		key:     fmt.Sprintf("cookies-%s", u.Host),
		now:     time.Now,
		jar:     jar,
		tracked: make(map[string]storedCookie),
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

// SetCookies implements http.CookieJar
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	// Cookies from other hosts live for this run only.
	if !strings.EqualFold(u.Hostname(), j.baseURL.Hostname()) {
		return
	}

	now := j.now()
	for _, c := range cookies {
		sc, live := captureCookie(u, c, now)
		if live {
			j.tracked[sc.id()] = sc
		} else {
			delete(j.tracked, sc.id())
		}
	}
}

// Cookies implements http.CookieJar
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Save persists the cookies the backend has set. An empty jar removes the
// persisted entry.
func (j *Jar) Save() error {
	j.mu.Lock()
	now := j.now()
	stored := make([]storedCookie, 0, len(j.tracked))
	for id, c := range j.tracked {
		if c.expired(now) {
			delete(j.tracked, id)
			continue
		}
		stored = append(stored, c)
	}
	j.mu.Unlock()

	if len(stored) == 0 {
		return j.store.Delete(j.key)
	}

	sort.Slice(stored, func(a, b int) bool {
		return stored[a].id() < stored[b].id()
	})

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	return j.store.Set(j.key, string(data))
}

func (j *Jar) load() error {
	data, err := j.store.Get(j.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		// Corrupt entries are dropped.
		return j.store.Delete(j.key)
	}

	now := j.now()
	for _, sc := range stored {
		if sc.expired(now) {
			continue
		}

		u := &url.URL{Scheme: j.baseURL.Scheme, Host: j.baseURL.Host, Path: sc.Path}
		j.SetCookies(u, []*http.Cookie{{
			Name:     sc.Name,
			Value:    sc.Value,
			Domain:   sc.Domain,
			Path:     sc.Path,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
			SameSite: sc.SameSite,
		}})
	}
	return nil
}

// captureCookie resolves the attributes the jar applies to c when it is set
// from u. It reports false when c deletes or has already expired.
func captureCookie(u *url.URL, c *http.Cookie, now time.Time) (storedCookie, bool) {
	sc := storedCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   strings.TrimPrefix(strings.ToLower(c.Domain), "."),
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
		SameSite: c.SameSite,
	}
	if sc.Path == "" || sc.Path[0] != '/' {
		sc.Path = defaultPath(u.Path)
	}

	// MaxAge takes precedence over Expires.
	switch {
	case c.MaxAge < 0:
		return sc, false
	case c.MaxAge > 0:
		sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		if !c.Expires.After(now) {
			return sc, false
		}
		sc.Expires = c.Expires
	}
	return sc, true
}

// defaultPath is the RFC 6265 default-path of a request path
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
