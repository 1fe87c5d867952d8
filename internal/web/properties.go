package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"imobiliaria/web/internal/client"
	"imobiliaria/web/internal/media"
	"imobiliaria/web/internal/models"
)

const maxUploadMemory = 32 << 20

// PropertyForm is the create and edit form of a listing.
type PropertyForm struct {
	Name        string `form:"name"`
	Description string `form:"description"`
	Type        string `form:"type"`
	Value       string `form:"value"`
	Area        string `form:"area"`
	Bedrooms    string `form:"bedrooms"`
	Address     string `form:"address"`
	City        string `form:"city"`
	State       string `form:"state"`
}

// Create validates the form as a new listing.
func (f PropertyForm) Create() (models.PropertyCreate, error) {
	data := models.PropertyCreate{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		Type:        models.Category(f.Type),
		Address:     strings.TrimSpace(f.Address),
		City:        strings.TrimSpace(f.City),
		State:       strings.TrimSpace(f.State),
	}
	if data.Name == "" {
		return data, errors.New("name is required")
	}
	if !data.Type.Valid() {
		return data, errors.New("choose a property type")
	}

	var err error
	if data.Value, err = strconv.ParseFloat(strings.TrimSpace(f.Value), 64); err != nil || data.Value < 0 {
		return data, errors.New("value must be a positive number")
	}
	if data.Area, err = optionalInt(f.Area); err != nil {
		return data, errors.New("area must be a whole number")
	}
	if data.Bedrooms, err = optionalInt(f.Bedrooms); err != nil {
		return data, errors.New("bedrooms must be a whole number")
	}
	return data, nil
}

// Update turns the filled in fields into a partial update.
func (f PropertyForm) Update() (models.PropertyUpdate, error) {
	var data models.PropertyUpdate
	if v := strings.TrimSpace(f.Name); v != "" {
		data.Name = &v
	}
	if v := strings.TrimSpace(f.Description); v != "" {
		data.Description = &v
	}
	if f.Type != "" {
		t := models.Category(f.Type)
		if !t.Valid() {
			return data, errors.New("choose a property type")
		}
		data.Type = &t
	}
	if v := strings.TrimSpace(f.Value); v != "" {
		value, err := strconv.ParseFloat(v, 64)
		if err != nil || value < 0 {
			return data, errors.New("value must be a positive number")
		}
		data.Value = &value
	}
	if v := strings.TrimSpace(f.Area); v != "" {
		area, err := strconv.Atoi(v)
		if err != nil {
			return data, errors.New("area must be a whole number")
		}
		data.Area = &area
	}
	if v := strings.TrimSpace(f.Bedrooms); v != "" {
		bedrooms, err := strconv.Atoi(v)
		if err != nil {
			return data, errors.New("bedrooms must be a whole number")
		}
		data.Bedrooms = &bedrooms
	}
	if v := strings.TrimSpace(f.Address); v != "" {
		data.Address = &v
	}
	if v := strings.TrimSpace(f.City); v != "" {
		data.City = &v
	}
	if v := strings.TrimSpace(f.State); v != "" {
		data.State = &v
	}
	if data.Empty() {
		return data, errors.New("nothing to update")
	}
	return data, nil
}

func optionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func propertyID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func propertyPath(id int64) string {
	return fmt.Sprintf("/property/%d", id)
}

// Home shows one page of the public catalogue.
func (h *Handler) Home(c *gin.Context) {
	h.renderHome(c, http.StatusOK, gin.H{})
}

func (h *Handler) renderHome(c *gin.Context, status int, data gin.H) {
	query := c.Request.URL.Query()
	filter := models.ParsePropertyFilter(query)

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 0 {
		page = 0
	}

	result, err := h.apiFor(c).Properties().List(c.Request.Context(), filter, page, h.opts.PageSize, h.opts.Sort)
	if err != nil {
		if h.sessionExpired(c, err) {
			return
		}
		h.logger.WithError(err).Error("Failed to list properties")
		data["ListError"] = message(err, "Failed to load properties")
		result = &models.Page[models.Property]{First: true, Last: true, Empty: true}
	}

	data["Title"] = "Properties"
	data["Query"] = query
	data["Filtered"] = !filter.IsZero()
	data["Page"] = result
	data["CanCreate"] = currentSession(c).Role() != models.RoleClient
	if !result.First && result.Number > 0 {
		data["PrevURL"] = pageURL("/home", query, result.Number-1)
	}
	if !result.Last && !result.Empty {
		data["NextURL"] = pageURL("/home", query, result.Number+1)
	}

	h.render(c, status, "home.html", data)
}

// CreateProperty uploads the attached images and creates the listing.
func (h *Handler) CreateProperty(c *gin.Context) {
	var form PropertyForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderHome(c, http.StatusBadRequest, gin.H{"CreateError": "Invalid form", "Form": form})
		return
	}

	data, err := form.Create()
	if err != nil {
		h.renderHome(c, http.StatusBadRequest, gin.H{"CreateError": err.Error(), "Form": form})
		return
	}

	var files []media.File
	if multipartForm, err := c.MultipartForm(); err == nil {
		for _, fh := range multipartForm.File["images"] {
			files = append(files, media.File{
				Name: fh.Filename,
				Open: func() (io.ReadCloser, error) { return fh.Open() },
			})
		}
	}

	if len(files) > 0 {
		urls, err := h.uploader.UploadAll(c.Request.Context(), files)
		if err != nil {
			h.logger.WithError(err).Error("Failed to upload listing images")
			msg := "Image upload failed"
			if errors.Is(err, media.ErrNotConfigured) {
				msg = "Image upload is not configured"
			}
			h.renderHome(c, http.StatusBadGateway, gin.H{"CreateError": msg, "Form": form})
			return
		}
		data.ImageURLs = strings.Join(urls, ",")
	}

	created, err := h.apiFor(c).Properties().Create(c.Request.Context(), data)
	if err != nil {
		if h.sessionExpired(c, err) {
			return
		}
		h.renderHome(c, statusFor(err), gin.H{
			"CreateError": message(err, "Failed to create property"),
			"Form":        form,
		})
		return
	}

	h.logger.WithField("property_id", created.ID).Info("Created property")
	c.Redirect(http.StatusFound, propertyPath(created.ID))
}

// ShowProperty renders the detail view.
func (h *Handler) ShowProperty(c *gin.Context) {
	h.renderProperty(c, http.StatusOK, gin.H{})
}

// renderProperty loads the listing and the caller's favorites together.
// A favorites failure only hides the favorite state.
func (h *Handler) renderProperty(c *gin.Context, status int, data gin.H) {
	id, ok := propertyID(c)
	if !ok {
		h.renderError(c, http.StatusNotFound, "Property not found")
		return
	}

	api := h.apiFor(c)
	var (
		property  *models.Property
		favorites []models.Property
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		property, err = api.Properties().Get(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		if favorites, err = api.Users().Favorites(ctx); err != nil {
			h.logger.WithError(err).Warn("Failed to load favorites")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if h.sessionExpired(c, err) {
			return
		}
		h.logger.WithError(err).WithField("property_id", id).Error("Failed to load property")
		h.renderError(c, statusFor(err), message(err, "Failed to load property"))
		return
	}

	favorite := false
	for _, f := range favorites {
		if f.ID == property.ID {
			favorite = true
			break
		}
	}

	s := currentSession(c)
	data["Title"] = property.Name
	data["Property"] = property
	data["Favorite"] = favorite
	data["CanEdit"] = s.CanManage(*property)
	data["CanFavorite"] = s.Role() == models.RoleClient
	h.render(c, status, "property.html", data)
}

// UpdateProperty applies the edit form as a partial update.
func (h *Handler) UpdateProperty(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		h.renderError(c, http.StatusNotFound, "Property not found")
		return
	}

	var form PropertyForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderProperty(c, http.StatusBadRequest, gin.H{"Error": "Invalid form"})
		return
	}
	data, err := form.Update()
	if err != nil {
		h.renderProperty(c, http.StatusBadRequest, gin.H{"Error": err.Error()})
		return
	}

	if _, err := h.apiFor(c).Properties().Update(c.Request.Context(), id, data); err != nil {
		h.actionFailed(c, err, "Failed to update property")
		return
	}
	c.Redirect(http.StatusFound, propertyPath(id))
}

// ToggleProperty flips the listing between active and inactive.
func (h *Handler) ToggleProperty(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		h.renderError(c, http.StatusNotFound, "Property not found")
		return
	}

	if _, err := h.apiFor(c).Properties().ToggleActive(c.Request.Context(), id); err != nil {
		h.actionFailed(c, err, "Failed to change property status")
		return
	}
	c.Redirect(http.StatusFound, propertyPath(id))
}

func (h *Handler) DeleteProperty(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		h.renderError(c, http.StatusNotFound, "Property not found")
		return
	}

	if err := h.apiFor(c).Properties().Delete(c.Request.Context(), id); err != nil {
		h.actionFailed(c, err, "Failed to delete property")
		return
	}
	h.logger.WithField("property_id", id).Info("Deleted property")
	c.Redirect(http.StatusFound, "/home")
}

func (h *Handler) AddFavorite(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		h.renderError(c, http.StatusNotFound, "Property not found")
		return
	}

	if err := h.apiFor(c).Users().AddFavorite(c.Request.Context(), id); err != nil {
		h.actionFailed(c, err, "Failed to add favorite")
		return
	}
	c.Redirect(http.StatusFound, propertyPath(id))
}

func (h *Handler) RemoveFavorite(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		h.renderError(c, http.StatusNotFound, "Property not found")
		return
	}

	if err := h.apiFor(c).Users().RemoveFavorite(c.Request.Context(), id); err != nil {
		h.actionFailed(c, err, "Failed to remove favorite")
		return
	}
	c.Redirect(http.StatusFound, propertyPath(id))
}

// actionFailed re-renders the detail view with the error banner.
func (h *Handler) actionFailed(c *gin.Context, err error, fallback string) {
	if h.sessionExpired(c, err) {
		return
	}
	h.logger.WithError(err).WithField("path", c.Request.URL.Path).Warn(fallback)
	h.renderProperty(c, statusFor(err), gin.H{"Error": message(err, fallback)})
}

// MyProperties lists the listings owned by the caller, filtered locally.
func (h *Handler) MyProperties(c *gin.Context) {
	query := c.Request.URL.Query()
	filter := models.ParsePropertyFilter(query)

	owned, err := h.apiFor(c).Properties().ListOwned(c.Request.Context())
	data := gin.H{"Title": "My listings", "Query": query, "Filtered": !filter.IsZero()}
	if err != nil {
		if h.sessionExpired(c, err) {
			return
		}
		h.logger.WithError(err).Error("Failed to list owned properties")
		data["ListError"] = message(err, "Failed to load your properties")
	}

	matched := make([]models.Property, 0, len(owned))
	for _, p := range owned {
		if filter.Matches(p) {
			matched = append(matched, p)
		}
	}
	data["Properties"] = matched
	h.render(c, http.StatusOK, "properties.html", data)
}

func (h *Handler) Favorites(c *gin.Context) {
	favorites, err := h.apiFor(c).Users().Favorites(c.Request.Context())
	data := gin.H{"Title": "Favorites", "Properties": favorites}
	if err != nil {
		if h.sessionExpired(c, err) {
			return
		}
		h.logger.WithError(err).Error("Failed to list favorites")
		data["ListError"] = message(err, "Failed to load favorites")
	}
	h.render(c, http.StatusOK, "favorites.html", data)
}

// statusFor maps a client error to the status of the rendered view.
func statusFor(err error) int {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusBadGateway
}
