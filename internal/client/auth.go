package client

import (
	"context"
	"net/http"

	"imobiliaria/web/internal/models"
)

// AuthClient calls the unauthenticated /auth endpoints.
type AuthClient struct {
	c *Client
}

// Login exchanges credentials for a token.
func (a *AuthClient) Login(ctx context.Context, creds models.Credentials) (string, error) {
	var token models.Token
	err := a.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     creds,
		public:   true,
		fallback: "failed to log in",
	}, &token)
	if err != nil {
		return "", err
	}
	return token.Token, nil
}

// Register creates an account.
func (a *AuthClient) Register(ctx context.Context, reg models.Registration) error {
	return a.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/auth/register",
		body:     reg,
		public:   true,
		fallback: "failed to register",
	}, nil)
}
