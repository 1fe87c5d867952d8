package config

import "imobiliaria/web/internal/models"

// Category describes how a listing category is presented
type Category struct {
	Code  models.Category `json:"code"`
	Label string          `json:"label"`
}

// SupportedCategories is the list of categories offered in forms and filters
var SupportedCategories = []Category{
	{Code: models.CategoryApartment, Label: "Apartment"},
	{Code: models.CategoryHouse, Label: "House"},
	{Code: models.CategoryLand, Label: "Land"},
}

// GetCategoryLabel returns the label for a category code, or the code itself when unknown
func GetCategoryLabel(code models.Category) string {
	for _, c := range SupportedCategories {
		if c.Code == code {
			return c.Label
		}
	}
	return string(code)
}
