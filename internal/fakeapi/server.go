// Package fakeapi is an in-memory stand-in for the remote listing API, used by tests.
package fakeapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"imobiliaria/web/internal/models"
)

type account struct {
	user     models.User
	password string
}

type claims struct {
	Role models.Role `json:"role"`
	ID   int64       `json:"id"`
	jwt.RegisteredClaims
}

// Server holds users, listings and favorites in memory.
type Server struct {
	mu         sync.Mutex
	secret     []byte
	nextUserID int64
	nextPropID int64
	accounts   map[int64]*account
	properties map[int64]*models.Property
	favorites  map[int64][]int64
	requests   atomic.Int64
	engine     *gin.Engine
}

func New(secret string) *Server {
	s := &Server{
		secret:     []byte(secret),
		accounts:   make(map[int64]*account),
		properties: make(map[int64]*models.Property),
		favorites:  make(map[int64][]int64),
	}
	s.engine = s.routes()
	return s
}

// ServeHTTP lets the server be mounted with httptest.NewServer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	s.engine.ServeHTTP(w, r)
}

// Requests returns how many requests reached the server.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// AddUser registers an account directly.
func (s *Server) AddUser(name, email, password string, role models.Role) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(name, email, password, role)
}

func (s *Server) addUserLocked(name, email, password string, role models.Role) models.User {
	s.nextUserID++
	u := models.User{ID: s.nextUserID, Name: name, Email: email, Role: role}
	s.accounts[u.ID] = &account{user: u, password: password}
	return u
}

// AddProperty stores a listing owned by p.BrokerID and returns it with its assigned id.
func (s *Server) AddProperty(p models.Property) models.Property {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPropID++
	p.ID = s.nextPropID
	if acc, ok := s.accounts[p.BrokerID]; ok {
		p.BrokerName = acc.user.Name
	}
	stored := p
	s.properties[p.ID] = &stored
	return p
}

// Token mints a token for the given user, valid for an hour.
func (s *Server) Token(userID int64) string {
	s.mu.Lock()
	acc, ok := s.accounts[userID]
	s.mu.Unlock()
	if !ok {
		return ""
	}
	token, err := s.sign(acc.user, time.Now().Add(time.Hour))
	if err != nil {
		return ""
	}
	return token
}

func (s *Server) sign(u models.User, exp time.Time) (string, error) {
	c := claims{
		Role: u.Role,
		ID:   u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, models.APIError{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      c.Request.URL.Path,
	})
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()

	api := router.Group("/api")
	api.POST("/auth/login", s.login)
	api.POST("/auth/register", s.register)

	authed := api.Group("", s.authenticate)
	{
		authed.GET("/property", s.listProperties)
		authed.GET("/property/:id", s.getProperty)
		authed.POST("/property", s.createProperty)
		authed.PUT("/property/:id", s.updateProperty)
		authed.DELETE("/property/:id", s.deleteProperty)
		authed.PATCH("/property/status/:id", s.toggleProperty)
		authed.GET("/user", s.me)
		authed.PUT("/update", s.updateMe)
		authed.POST("/create", s.createUser)
		authed.GET("/favorites", s.listFavorites)
		authed.POST("/favorites/:id", s.addFavorite)
		authed.DELETE("/favorites/:id", s.removeFavorite)
	}

	return router
}

func (s *Server) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		fail(c, http.StatusUnauthorized, "authorization header required")
		return
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		fail(c, http.StatusUnauthorized, "invalid token")
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[parsed.ID]
	s.mu.Unlock()
	if !ok {
		fail(c, http.StatusUnauthorized, "unknown user")
		return
	}

	c.Set("user", acc.user)
	c.Next()
}

func currentUser(c *gin.Context) models.User {
	return c.MustGet("user").(models.User)
}

func (s *Server) login(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	var found *account
	for _, acc := range s.accounts {
		if acc.user.Email == creds.Email && acc.password == creds.Password {
			found = acc
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		fail(c, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.sign(found.user, time.Now().Add(time.Hour))
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to sign token")
		return
	}
	c.JSON(http.StatusOK, models.Token{Token: token})
}

func (s *Server) register(c *gin.Context) {
	var reg models.Registration
	if err := c.ShouldBindJSON(&reg); err != nil || reg.Email == "" || reg.Password == "" {
		fail(c, http.StatusBadRequest, "name, email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.user.Email == reg.Email {
			fail(c, http.StatusConflict, "email already registered")
			return
		}
	}
	s.addUserLocked(reg.Name, reg.Email, reg.Password, models.RoleClient)
	c.Status(http.StatusCreated)
}

func (s *Server) listProperties(c *gin.Context) {
	filter := models.ParsePropertyFilter(c.Request.URL.Query())
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	if size <= 0 {
		size = 10
	}

	s.mu.Lock()
	var matched []models.Property
	for _, p := range s.properties {
		if filter.Matches(*p) {
			matched = append(matched, *p)
		}
	}
	s.mu.Unlock()

	sortProperties(matched, c.DefaultQuery("sort", "id,desc"))
	c.JSON(http.StatusOK, models.NewPage(matched, page, size))
}

func sortProperties(items []models.Property, order string) {
	field, direction, _ := strings.Cut(order, ",")
	desc := strings.EqualFold(direction, "desc")

	less := func(i, j int) bool { return items[i].ID < items[j].ID }
	switch field {
	case "value":
		less = func(i, j int) bool { return items[i].Value < items[j].Value }
	case "name":
		less = func(i, j int) bool { return items[i].Name < items[j].Name }
	}

	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

func (s *Server) propertyParam(c *gin.Context) (*models.Property, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	p, ok := s.properties[id]
	if !ok {
		fail(c, http.StatusNotFound, "property not found")
		return nil, false
	}
	return p, true
}

func (s *Server) getProperty(c *gin.Context) {
	if c.Param("id") == "getUserProperties" {
		s.ownedProperties(c)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.propertyParam(c); ok {
		c.JSON(http.StatusOK, *p)
	}
}

func (s *Server) ownedProperties(c *gin.Context) {
	user := currentUser(c)

	s.mu.Lock()
	owned := []models.Property{}
	for _, p := range s.properties {
		if p.BrokerID == user.ID {
			owned = append(owned, *p)
		}
	}
	s.mu.Unlock()

	sortProperties(owned, "id,asc")
	c.JSON(http.StatusOK, owned)
}

func canManage(user models.User, p *models.Property) bool {
	return user.Role == models.RoleAdmin || (user.Role == models.RoleBroker && p.BrokerID == user.ID)
}

func (s *Server) createProperty(c *gin.Context) {
	user := currentUser(c)
	if user.Role == models.RoleClient {
		fail(c, http.StatusForbidden, "clients cannot create listings")
		return
	}

	var data models.PropertyCreate
	if err := c.ShouldBindJSON(&data); err != nil || data.Name == "" || !data.Type.Valid() {
		fail(c, http.StatusBadRequest, "invalid listing")
		return
	}

	p := s.AddProperty(models.Property{
		Name:        data.Name,
		Description: data.Description,
		Type:        data.Type,
		Value:       data.Value,
		Area:        data.Area,
		Bedrooms:    data.Bedrooms,
		Address:     data.Address,
		City:        data.City,
		State:       data.State,
		Active:      true,
		BrokerID:    user.ID,
		ImageURLs:   data.ImageURLs,
	})
	c.JSON(http.StatusCreated, p)
}

func (s *Server) updateProperty(c *gin.Context) {
	user := currentUser(c)

	var data models.PropertyUpdate
	if err := c.ShouldBindJSON(&data); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.propertyParam(c)
	if !ok {
		return
	}
	if !canManage(user, p) {
		fail(c, http.StatusForbidden, "you cannot edit this listing")
		return
	}

	if data.Name != nil {
		p.Name = *data.Name
	}
	if data.Description != nil {
		p.Description = *data.Description
	}
	if data.Type != nil {
		p.Type = *data.Type
	}
	if data.Value != nil {
		p.Value = *data.Value
	}
	if data.Area != nil {
		p.Area = *data.Area
	}
	if data.Bedrooms != nil {
		p.Bedrooms = *data.Bedrooms
	}
	if data.Address != nil {
		p.Address = *data.Address
	}
	if data.City != nil {
		p.City = *data.City
	}
	if data.State != nil {
		p.State = *data.State
	}
	if data.BrokerID != nil && user.Role == models.RoleAdmin {
		if acc, ok := s.accounts[*data.BrokerID]; ok {
			p.BrokerID = acc.user.ID
			p.BrokerName = acc.user.Name
		}
	}
	c.JSON(http.StatusOK, *p)
}

func (s *Server) deleteProperty(c *gin.Context) {
	user := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.propertyParam(c)
	if !ok {
		return
	}
	if !canManage(user, p) {
		fail(c, http.StatusForbidden, "you cannot delete this listing")
		return
	}
	delete(s.properties, p.ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) toggleProperty(c *gin.Context) {
	user := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.propertyParam(c)
	if !ok {
		return
	}
	if !canManage(user, p) {
		fail(c, http.StatusForbidden, "you cannot change this listing")
		return
	}
	p.Active = !p.Active
	c.JSON(http.StatusOK, *p)
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (s *Server) updateMe(c *gin.Context) {
	user := currentUser(c)

	var data models.UserUpdate
	if err := c.ShouldBindJSON(&data); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if data.Password != "" && len(data.Password) < 6 {
		fail(c, http.StatusBadRequest, "password must have at least 6 characters")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[user.ID]
	if data.Name != "" {
		acc.user.Name = data.Name
	}
	if data.Password != "" {
		acc.password = data.Password
	}
	c.JSON(http.StatusOK, acc.user)
}

func (s *Server) createUser(c *gin.Context) {
	if currentUser(c).Role != models.RoleAdmin {
		fail(c, http.StatusForbidden, "Access Denied")
		return
	}

	var data models.UserCreate
	if err := c.ShouldBindJSON(&data); err != nil || data.Email == "" || !data.Role.Valid() {
		fail(c, http.StatusBadRequest, "invalid user")
		return
	}

	c.JSON(http.StatusCreated, s.AddUser(data.Name, data.Email, data.Password, data.Role))
}

func (s *Server) listFavorites(c *gin.Context) {
	user := currentUser(c)

	s.mu.Lock()
	favorites := []models.Property{}
	for _, id := range s.favorites[user.ID] {
		if p, ok := s.properties[id]; ok {
			favorites = append(favorites, *p)
		}
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, favorites)
}

func (s *Server) addFavorite(c *gin.Context) {
	user := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.propertyParam(c)
	if !ok {
		return
	}
	for _, id := range s.favorites[user.ID] {
		if id == p.ID {
			c.Status(http.StatusNoContent)
			return
		}
	}
	s.favorites[user.ID] = append(s.favorites[user.ID], p.ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) removeFavorite(c *gin.Context) {
	user := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.propertyParam(c)
	if !ok {
		return
	}
	kept := s.favorites[user.ID][:0]
	for _, id := range s.favorites[user.ID] {
		if id != p.ID {
			kept = append(kept, id)
		}
	}
	s.favorites[user.ID] = kept
	c.Status(http.StatusNoContent)
}
