// Package testbackend is an in-memory imitation of the storefront's user
// endpoints. Tests point a session.Client at it through httptest.
package testbackend

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the session cookie the backend issues
const CookieName = "token"

// Shape selects how /me encodes the user
type Shape int

const (
	ShapeBare Shape = iota
	ShapeWrapped
)

type account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsAdmin      bool
	Verified     bool
	CreatedAt    time.Time
}

// Claims is the payload of the session cookie
type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Backend serves /api/users/* from memory
type Backend struct {
	router *gin.Engine
	logger zerolog.Logger
	secret []byte

	mu           sync.Mutex
	accounts     map[string]*account // by email
	otps         map[string]string   // email -> code
	revoked      map[string]bool     // token IDs
	shape        Shape
	meOverride   gin.HandlerFunc
	logoutStatus int
	hits         map[string]int
}

// New creates a backend with a fresh signing secret
func New(logger zerolog.Logger) *Backend {
	gin.SetMode(gin.TestMode)

	secret := make([]byte, 32)
	_, _ = rand.Read(secret)

	b := &Backend{
		logger:   logger,
		secret:   secret,
		accounts: make(map[string]*account),
		otps:     make(map[string]string),
		revoked:  make(map[string]bool),
		hits:     make(map[string]int),
	}
	b.setupRouter()
	return b
}

// Handler returns the HTTP handler, for use with httptest.NewServer
func (b *Backend) Handler() http.Handler {
	return b.router
}

// AddUser registers a verified account and returns its ID
func (b *Backend) AddUser(email, password, name string, isAdmin bool) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("testbackend: hash password: %v", err))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc := &account{
		ID:           newID(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
		Verified:     true,
		CreatedAt:    time.Now().UTC(),
	}
	b.accounts[email] = acc
	return acc.ID
}

// UseShape selects the /me response layout
func (b *Backend) UseShape(s Shape) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shape = s
}

// OverrideMe replaces the /me handler, e.g. to return a malformed body
func (b *Backend) OverrideMe(h gin.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meOverride = h
}

// FailLogout makes /logout answer with status until reset with 0
func (b *Backend) FailLogout(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logoutStatus = status
}

// PendingOTP returns the verification code issued for email
func (b *Backend) PendingOTP(email string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	code, ok := b.otps[email]
	return code, ok
}

// Hits returns how many requests reached path
func (b *Backend) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func (b *Backend) setupRouter() {
	b.router = gin.New()
	b.router.Use(gin.Recovery())
	b.router.Use(b.countingMiddleware())

	users := b.router.Group("/api/users")
	{
		users.POST("/login", b.login)
		users.POST("/register", b.register)
		users.POST("/verify-otp", b.verifyOTP)
		users.POST("/logout", b.logout)
		users.GET("/me", b.overrideMiddleware(), b.sessionMiddleware(), b.me)
	}
}

func (b *Backend) countingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		b.hits[c.Request.URL.Path]++
		b.mu.Unlock()

		start := time.Now()
		c.Next()

		b.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Msg("HTTP request")
	}
}

func (b *Backend) issueToken(acc *account) (string, error) {
	claims := Claims{
		UserID:  acc.ID,
		Email:   acc.Email,
		IsAdmin: acc.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(b.secret)
}

func (b *Backend) parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return b.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func (b *Backend) setSessionCookie(c *gin.Context, acc *account) bool {
	token, err := b.issueToken(acc)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, 3600, "/", "", false, true)
	return true
}

func newID() string {
	return ulid.Make().String()
}

func randomOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "0000"
	}
	return fmt.Sprintf("%04d", n.Int64())
}
