package models

import "strings"

// Category is the kind of real estate a listing describes.
type Category string

const (
	CategoryApartment Category = "APARTAMENTO"
	CategoryHouse     Category = "CASA"
	CategoryLand      Category = "TERRENO"
)

// Valid reports whether c is one of the categories the remote API accepts.
func (c Category) Valid() bool {
	switch c {
	case CategoryApartment, CategoryHouse, CategoryLand:
		return true
	default:
		return false
	}
}

// Property is a read-through copy of a listing owned by the remote service.
type Property struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        Category `json:"type"`
	Value       float64  `json:"value"`
	Area        int      `json:"area"`
	Bedrooms    int      `json:"bedrooms"`
	Address     string   `json:"address"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Active      bool     `json:"active"`
	BrokerID    int64    `json:"brokerId"`
	BrokerName  string   `json:"brokerName"`
	ImageURLs   string   `json:"imageUrls"`
}

// Images splits the comma separated image reference list.
func (p Property) Images() []string {
	if strings.TrimSpace(p.ImageURLs) == "" {
		return nil
	}

	var images []string
	for _, u := range strings.Split(p.ImageURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			images = append(images, u)
		}
	}
	return images
}

// Cover returns the first image reference or an empty string.
func (p Property) Cover() string {
	if images := p.Images(); len(images) > 0 {
		return images[0]
	}
	return ""
}

// PropertyCreate is the payload for POST /property
type PropertyCreate struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        Category `json:"type"`
	Value       float64  `json:"value"`
	Area        int      `json:"area"`
	Bedrooms    int      `json:"bedrooms"`
	Address     string   `json:"address"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	ImageURLs   string   `json:"imageUrls,omitempty"`
}

// PropertyUpdate is a partial update; nil fields are left untouched by the server.
type PropertyUpdate struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Type        *Category `json:"type,omitempty"`
	Value       *float64  `json:"value,omitempty"`
	Area        *int      `json:"area,omitempty"`
	Bedrooms    *int      `json:"bedrooms,omitempty"`
	Address     *string   `json:"address,omitempty"`
	City        *string   `json:"city,omitempty"`
	State       *string   `json:"state,omitempty"`
	BrokerID    *int64    `json:"brokerId,omitempty"`
}

// Empty reports whether the update carries no field at all.
func (u PropertyUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Type == nil &&
		u.Value == nil && u.Area == nil && u.Bedrooms == nil &&
		u.Address == nil && u.City == nil && u.State == nil && u.BrokerID == nil
}

// Page is the paginated envelope the remote API wraps list results in.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
	Empty         bool  `json:"empty"`
}

// NewPage slices items into the page with the given zero-based index.
func NewPage[T any](items []T, number, size int) Page[T] {
	if size <= 0 {
		size = len(items)
	}
	if number < 0 {
		number = 0
	}

	total := len(items)
	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}

	start := number * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	content := make([]T, end-start)
	copy(content, items[start:end])

	return Page[T]{
		Content:       content,
		TotalPages:    totalPages,
		TotalElements: int64(total),
		Size:          size,
		Number:        number,
		First:         number == 0,
		Last:          number >= totalPages-1,
		Empty:         len(content) == 0,
	}
}
