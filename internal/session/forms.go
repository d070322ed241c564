package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// OTPLength is the number of digits in a verification code
const OTPLength = 4

// SignInForm is the sign-in request body
type SignInForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpForm is the sign-up request body. ConfirmPassword is checked locally only.
type SignUpForm struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"-" validate:"required,eqfield=Password"`
}

// OTPForm confirms the code sent after sign-up
type OTPForm struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"otpNumber" validate:"required,len=4,numeric"`
}

// Login submits credentials. On success the backend sets the session cookie
// in the client's jar; callers should refresh their auth store afterwards.
func (c *Client) Login(ctx context.Context, form SignInForm) error {
	if err := c.validate.Struct(&form); err != nil {
		return fmt.Errorf("invalid sign-in form: %w", err)
	}
	return c.submit(ctx, "sign in", c.paths.Login, form)
}

// Register creates an account; the backend emails a verification code
func (c *Client) Register(ctx context.Context, form SignUpForm) error {
	if err := c.validate.Struct(&form); err != nil {
		return fmt.Errorf("invalid sign-up form: %w", err)
	}
	return c.submit(ctx, "sign up", c.paths.Register, form)
}

// VerifyOTP confirms the emailed verification code
func (c *Client) VerifyOTP(ctx context.Context, form OTPForm) error {
	if err := c.validate.Struct(&form); err != nil {
		return fmt.Errorf("invalid verification code: %w", err)
	}
	return c.submit(ctx, "verify code", c.paths.VerifyOTP, form)
}

func (c *Client) submit(ctx context.Context, op, path string, body any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(respBody, "Failed to "+op),
		}
	}

	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("Form submitted")

	return nil
}
