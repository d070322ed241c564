package testbackend

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type verifyOTPRequest struct {
	Email     string `json:"email" binding:"required,email"`
	OTPNumber string `json:"otpNumber" binding:"required,len=4,numeric"`
}

type userDetail struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

func (b *Backend) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b.mu.Lock()
	var acc account
	stored, ok := b.accounts[req.Email]
	if ok {
		acc = *stored
	}
	b.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if !acc.Verified {
		c.JSON(http.StatusForbidden, gin.H{"error": "Email not verified"})
		return
	}

	if !b.setSessionCookie(c, &acc) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged in"})
}

func (b *Backend) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.accounts[req.Email]; exists {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	b.accounts[req.Email] = &account{
		ID:           newID(),
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	b.otps[req.Email] = randomOTP()

	c.JSON(http.StatusCreated, gin.H{"message": "Verification code sent"})
}

func (b *Backend) verifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b.mu.Lock()
	code, ok := b.otps[req.Email]
	stored := b.accounts[req.Email]
	verified := ok && code == req.OTPNumber && stored != nil
	var acc account
	if verified {
		stored.Verified = true
		delete(b.otps, req.Email)
		acc = *stored
	}
	b.mu.Unlock()

	if !verified {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid verification code"})
		return
	}

	if !b.setSessionCookie(c, &acc) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verified"})
}

func (b *Backend) logout(c *gin.Context) {
	b.mu.Lock()
	status := b.logoutStatus
	b.mu.Unlock()

	if status != 0 {
		c.JSON(status, gin.H{"error": "Logout unavailable"})
		return
	}

	if token, err := c.Cookie(CookieName); err == nil {
		if claims, err := b.parseToken(token); err == nil {
			b.mu.Lock()
			b.revoked[claims.ID] = true
			b.mu.Unlock()
		}
	}

	c.SetCookie(CookieName, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// sessionMiddleware validates the session cookie and stores the account
func (b *Backend) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := b.parseToken(token)
		if err != nil {
			b.logger.Debug().Err(err).Msg("Rejected session cookie")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		b.mu.Lock()
		revoked := b.revoked[claims.ID]
		acc := b.accounts[claims.Email]
		b.mu.Unlock()

		if revoked || acc == nil || acc.ID != claims.UserID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set("account", acc)
		c.Next()
	}
}

// overrideMiddleware short-circuits /me when a test installed its own handler
func (b *Backend) overrideMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		override := b.meOverride
		b.mu.Unlock()

		if override != nil {
			override(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (b *Backend) me(c *gin.Context) {
	b.mu.Lock()
	shape := b.shape
	b.mu.Unlock()

	acc := c.MustGet("account").(*account)
	detail := userDetail{
		ID:        acc.ID,
		Email:     acc.Email,
		Name:      acc.Name,
		IsAdmin:   acc.IsAdmin,
		CreatedAt: acc.CreatedAt,
	}

	if shape == ShapeWrapped {
		c.JSON(http.StatusOK, gin.H{"user": detail})
		return
	}
	c.JSON(http.StatusOK, detail)
}
