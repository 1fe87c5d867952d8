package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"imobiliaria/web/internal/models"
)

const minPasswordLength = 6

type ProfileForm struct {
	Name            string `form:"name"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirmPassword"`
}

type CreateUserForm struct {
	Name     string `form:"name" binding:"required"`
	Email    string `form:"email" binding:"required"`
	Password string `form:"password" binding:"required"`
	Role     string `form:"role" binding:"required"`
}

// Update validates the profile form. The password is only sent when filled in.
func (f ProfileForm) Update() (models.UserUpdate, string) {
	data := models.UserUpdate{Name: strings.TrimSpace(f.Name)}
	if f.Password != "" || f.ConfirmPassword != "" {
		if f.Password != f.ConfirmPassword {
			return data, "Passwords do not match"
		}
		if len(f.Password) < minPasswordLength {
			return data, "Password must be at least 6 characters"
		}
		data.Password = f.Password
	}
	if data.Name == "" && data.Password == "" {
		return data, "Nothing to update"
	}
	return data, ""
}

func (h *Handler) ShowUser(c *gin.Context) {
	h.renderUser(c, http.StatusOK, gin.H{})
}

func (h *Handler) renderUser(c *gin.Context, status int, data gin.H) {
	user, err := h.apiFor(c).Users().Me(c.Request.Context())
	if err != nil {
		if h.sessionExpired(c, err) {
			return
		}
		h.logger.WithError(err).Error("Failed to load profile")
		h.renderError(c, statusFor(err), message(err, "Failed to load profile"))
		return
	}

	data["Title"] = "Profile"
	data["User"] = user
	h.render(c, status, "user.html", data)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var form ProfileForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderUser(c, http.StatusBadRequest, gin.H{"Error": "Invalid form"})
		return
	}

	data, problem := form.Update()
	if problem != "" {
		h.renderUser(c, http.StatusBadRequest, gin.H{"Error": problem})
		return
	}

	if _, err := h.apiFor(c).Users().UpdateMe(c.Request.Context(), data); err != nil {
		if h.sessionExpired(c, err) {
			return
		}
		h.logger.WithError(err).Warn("Failed to update profile")
		h.renderUser(c, statusFor(err), gin.H{"Error": message(err, "Failed to update profile")})
		return
	}

	h.renderUser(c, http.StatusOK, gin.H{"Notice": "Profile updated"})
}

// CreateUser lets an administrator register a user with an explicit role.
func (h *Handler) CreateUser(c *gin.Context) {
	var form CreateUserForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderUser(c, http.StatusBadRequest, gin.H{"CreateError": "All fields are required", "CreateForm": form})
		return
	}

	role := models.Role(form.Role)
	if !role.Valid() {
		h.renderUser(c, http.StatusBadRequest, gin.H{"CreateError": "Choose a valid role", "CreateForm": form})
		return
	}

	created, err := h.apiFor(c).Users().Create(c.Request.Context(), models.UserCreate{
		Name:     strings.TrimSpace(form.Name),
		Email:    strings.TrimSpace(form.Email),
		Password: form.Password,
		Role:     role,
	})
	if err != nil {
		if h.sessionExpired(c, err) {
			return
		}
		h.logger.WithError(err).Warn("Failed to create user")
		h.renderUser(c, statusFor(err), gin.H{
			"CreateError": message(err, "Failed to create user"),
			"CreateForm":  form,
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": created.ID,
		"role":    created.Role,
	}).Info("Created user")
	h.renderUser(c, http.StatusOK, gin.H{"CreateNotice": "User " + created.Email + " created"})
}
