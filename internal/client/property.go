package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"imobiliaria/web/internal/models"
)

// PropertyClient calls the /property endpoints.
type PropertyClient struct {
	c *Client
}

// List searches listings. page is zero-based; sort follows the remote
// "field,direction" convention, e.g. "id,desc".
func (p *PropertyClient) List(ctx context.Context, filter models.PropertyFilter, page, size int, sort string) (*models.Page[models.Property], error) {
	query := filter.Query()
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))
	if sort != "" {
		query.Set("sort", sort)
	}

	var result models.Page[models.Property]
	err := p.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/property",
		query:    query,
		fallback: "failed to fetch listings",
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *PropertyClient) Get(ctx context.Context, id int64) (*models.Property, error) {
	var property models.Property
	err := p.c.do(ctx, request{
		method:   http.MethodGet,
		path:     fmt.Sprintf("/property/%d", id),
		fallback: "failed to fetch listing",
	}, &property)
	if err != nil {
		return nil, err
	}
	return &property, nil
}

// ListOwned returns the listings owned by the caller.
func (p *PropertyClient) ListOwned(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := p.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/property/getUserProperties",
		fallback: "failed to fetch your listings",
	}, &properties)
	if err != nil {
		return nil, err
	}
	return properties, nil
}

func (p *PropertyClient) Create(ctx context.Context, data models.PropertyCreate) (*models.Property, error) {
	var property models.Property
	err := p.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/property",
		body:     data,
		fallback: "failed to create listing",
	}, &property)
	if err != nil {
		return nil, err
	}
	return &property, nil
}

func (p *PropertyClient) Update(ctx context.Context, id int64, data models.PropertyUpdate) (*models.Property, error) {
	var property models.Property
	err := p.c.do(ctx, request{
		method:   http.MethodPut,
		path:     fmt.Sprintf("/property/%d", id),
		body:     data,
		fallback: "failed to update listing",
	}, &property)
	if err != nil {
		return nil, err
	}
	return &property, nil
}

func (p *PropertyClient) Delete(ctx context.Context, id int64) error {
	return p.c.do(ctx, request{
		method:   http.MethodDelete,
		path:     fmt.Sprintf("/property/%d", id),
		fallback: "failed to delete listing",
	}, nil)
}

// ToggleActive flips the listing's active flag and returns the updated listing.
func (p *PropertyClient) ToggleActive(ctx context.Context, id int64) (*models.Property, error) {
	var property models.Property
	err := p.c.do(ctx, request{
		method:   http.MethodPatch,
		path:     fmt.Sprintf("/property/status/%d", id),
		fallback: "failed to change listing status",
	}, &property)
	if err != nil {
		return nil, err
	}
	return &property, nil
}
