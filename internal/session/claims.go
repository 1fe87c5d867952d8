package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"imobiliaria/web/internal/models"
)

var (
	// ErrMalformedToken signals a token whose claims cannot be decoded.
	ErrMalformedToken = errors.New("session: malformed token")
	// ErrTokenExpired signals a token whose exp claim is already in the past.
	ErrTokenExpired = errors.New("session: token expired")
)

// Claims are the identity claims the remote service embeds in its tokens.
type Claims struct {
	Role models.Role `json:"role"`
	ID   int64       `json:"id"`
	jwt.RegisteredClaims
}

// Decode reads the claims of a token without verifying its signature.
// The signing key lives with the remote service; it re-verifies every call.
func Decode(token string) (Claims, error) {
	var claims Claims
	if token == "" {
		return claims, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if !claims.Role.Valid() {
		return Claims{}, fmt.Errorf("%w: invalid role %q", ErrMalformedToken, claims.Role)
	}
	if claims.ID <= 0 {
		return Claims{}, fmt.Errorf("%w: missing subject id", ErrMalformedToken)
	}

	return claims, nil
}

// Expiry returns the exp claim, or the zero time when the token carries none.
func (c Claims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Expired reports whether the token has expired at now.
func (c Claims) Expired(now time.Time) bool {
	exp := c.Expiry()
	return !exp.IsZero() && !now.Before(exp)
}
