package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"imobiliaria/web/internal/models"
)

// UserClient calls the profile, user management and favorites endpoints.
type UserClient struct {
	c *Client
}

// Me returns the caller's profile.
func (u *UserClient) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	err := u.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/user",
		fallback: "failed to fetch profile",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *UserClient) UpdateMe(ctx context.Context, data models.UserUpdate) (*models.User, error) {
	var user models.User
	err := u.c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/update",
		body:     data,
		fallback: "failed to update profile",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create registers a user with an explicit role. Only admins may do this.
func (u *UserClient) Create(ctx context.Context, data models.UserCreate) (*models.User, error) {
	var user models.User
	err := u.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/create",
		body:     data,
		fallback: "failed to create user",
	}, &user)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		apiErr.Message = "access denied: only administrators can create users"
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *UserClient) Favorites(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := u.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/favorites",
		fallback: "failed to fetch favorites",
	}, &properties)
	if err != nil {
		return nil, err
	}
	return properties, nil
}

func (u *UserClient) AddFavorite(ctx context.Context, propertyID int64) error {
	return u.c.do(ctx, request{
		method:   http.MethodPost,
		path:     fmt.Sprintf("/favorites/%d", propertyID),
		fallback: "failed to add favorite",
	}, nil)
}

func (u *UserClient) RemoveFavorite(ctx context.Context, propertyID int64) error {
	return u.c.do(ctx, request{
		method:   http.MethodDelete,
		path:     fmt.Sprintf("/favorites/%d", propertyID),
		fallback: "failed to remove favorite",
	}, nil)
}
