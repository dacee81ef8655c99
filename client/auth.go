package client

import (
	"context"

	"github.com/sendgrid/rest"

	"github.com/smartcampus/campus/core/user"
)

// Credentials identify a user by username (or email) and password.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	User user.User `json:"user"`
}

type successResponse struct {
	Success string `json:"success"`
}

func (c *Client) userCall(ctx context.Context, method rest.Method, path string, in interface{}) (user.User, error) {
	var resp userResponse
	if err := c.do(ctx, method, path, nil, in, &resp); err != nil {
		return user.User{}, err
	}
	return resp.User, nil
}

// Login opens a session.
func (c *Client) Login(ctx context.Context, creds Credentials) (user.User, error) {
	return c.userCall(ctx, rest.Post, "/auth/login", creds)
}

// GoogleLogin exchanges a Google ID token for a session.
func (c *Client) GoogleLogin(ctx context.Context, idToken string) (user.User, error) {
	return c.userCall(ctx, rest.Post, "/auth/google", map[string]string{"token": idToken})
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, rest.Post, "/auth/logout", nil, nil, nil)
}

// Me returns the session user.
func (c *Client) Me(ctx context.Context) (user.User, error) {
	return c.userCall(ctx, rest.Get, "/auth/me", nil)
}

func (c *Client) UpdateProfile(ctx context.Context, data user.UpdateProfile) (user.User, error) {
	return c.userCall(ctx, rest.Put, "/auth/profile", data)
}

// RefreshSession re-issues the session cookie.
func (c *Client) RefreshSession(ctx context.Context) (user.User, error) {
	return c.userCall(ctx, rest.Post, "/auth/refresh", nil)
}

// RequestPasswordReset returns the server's message, which does not tell whether email is known.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var resp successResponse
	err := c.do(ctx, rest.Post, "/auth/password-reset", nil, map[string]string{"email": email}, &resp)
	return resp.Success, err
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, data user.ResetUserPassword) (string, error) {
	var resp successResponse
	err := c.do(ctx, rest.Post, "/auth/password-reset-confirm", nil, data, &resp)
	return resp.Success, err
}
