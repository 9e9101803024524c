package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// LoginRequest is the credentials payload for the login endpoint
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the signup payload. The optional profile image travels
// alongside as a multipart file part.
type RegisterRequest struct {
	Name            string
	Surname         string
	Email           string
	Password        string
	PasswordConfirm string
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	var token string
	if err := c.sendJSON(ctx, http.MethodPost, "/api/Authentication/login", nil, req, &token); err != nil {
		return "", err
	}
	return token, nil
}

// Register creates a new patient account. The backend sends the verification
// email itself.
func (c *Client) Register(ctx context.Context, req RegisterRequest, image *ImageUpload) error {
	fields := map[string]string{
		"name":            req.Name,
		"surname":         req.Surname,
		"email":           req.Email,
		"password":        req.Password,
		"passwordConfirm": req.PasswordConfirm,
	}
	return c.sendMultipart(ctx, http.MethodPost, "/api/Authentication/register", fields, image, nil)
}

// VerifyEmail confirms an emailed verification token
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	q := url.Values{"token": {token}}
	return c.getJSON(ctx, "/api/authentication/verify-email", q, nil)
}

// ForgotPassword asks the backend to email a reset link
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.sendJSON(ctx, http.MethodPost, "/api/Authentication/forgot-password", nil, body, nil)
}

// ResetPassword sets a new password using an emailed reset token
func (c *Client) ResetPassword(ctx context.Context, token, password, passwordConfirm string) error {
	body := map[string]string{
		"token":           token,
		"password":        password,
		"passwordConfirm": passwordConfirm,
	}
	return c.sendJSON(ctx, http.MethodPost, "/api/Authentication/reset-password", nil, body, nil)
}
