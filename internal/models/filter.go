package models

import (
	"net/url"
	"strconv"
	"strings"
)

// PropertyFilter is an optional predicate bag for listing searches.
// A nil or empty field imposes no constraint.
type PropertyFilter struct {
	Name        string   `json:"name,omitempty"`
	Type        Category `json:"type,omitempty"`
	MinPrice    *float64 `json:"minPrice,omitempty"`
	MaxPrice    *float64 `json:"maxPrice,omitempty"`
	MinBedrooms *int     `json:"minBedrooms,omitempty"`
}

// IsZero reports whether the filter constrains nothing.
func (f PropertyFilter) IsZero() bool {
	return strings.TrimSpace(f.Name) == "" && f.Type == "" &&
		f.MinPrice == nil && f.MaxPrice == nil && f.MinBedrooms == nil
}

// Query renders the filter as the query parameters of GET /property
func (f PropertyFilter) Query() url.Values {
	params := url.Values{}
	if name := strings.TrimSpace(f.Name); name != "" {
		params.Set("name", name)
	}
	if f.Type != "" {
		params.Set("type", string(f.Type))
	}
	if f.MinPrice != nil {
		params.Set("minPrice", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		params.Set("maxPrice", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	if f.MinBedrooms != nil {
		params.Set("minBedrooms", strconv.Itoa(*f.MinBedrooms))
	}
	return params
}

// Matches checks if a listing satisfies the filter criteria
func (f *PropertyFilter) Matches(property Property) bool {
	if f == nil {
		return true
	}

	if name := strings.TrimSpace(f.Name); name != "" {
		if !strings.Contains(strings.ToLower(property.Name), strings.ToLower(name)) {
			return false
		}
	}

	if f.Type != "" && property.Type != f.Type {
		return false
	}

	// Price range is inclusive on both ends
	if f.MinPrice != nil && property.Value < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && property.Value > *f.MaxPrice {
		return false
	}

	if f.MinBedrooms != nil && property.Bedrooms < *f.MinBedrooms {
		return false
	}

	return true
}

// ParsePropertyFilter builds a filter from query parameters. Malformed numbers are ignored.
func ParsePropertyFilter(values url.Values) PropertyFilter {
	var f PropertyFilter
	f.Name = strings.TrimSpace(values.Get("name"))

	if t := Category(strings.ToUpper(strings.TrimSpace(values.Get("type")))); t.Valid() {
		f.Type = t
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(values.Get("minPrice")), 64); err == nil {
		f.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(values.Get("maxPrice")), 64); err == nil {
		f.MaxPrice = &v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(values.Get("minBedrooms"))); err == nil {
		f.MinBedrooms = &v
	}
	return f
}
