// Package web serves the server-rendered views of the listing site.
package web

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"imobiliaria/web/internal/client"
	"imobiliaria/web/internal/media"
	"imobiliaria/web/internal/models"
	"imobiliaria/web/internal/session"
)

type Options struct {
	CookieName string
	PageSize   int
	Sort       string
}

type Handler struct {
	api      *client.Client
	sessions *session.Manager
	cookies  sessions.Store
	uploader *media.Uploader
	opts     Options
	logger   *logrus.Logger
}

type LoginForm struct {
	Email    string `form:"email" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type RegisterForm struct {
	Name     string `form:"name" binding:"required"`
	Email    string `form:"email" binding:"required"`
	Password string `form:"password" binding:"required"`
}

func NewHandler(api *client.Client, manager *session.Manager, cookies sessions.Store, uploader *media.Uploader, opts Options, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if opts.CookieName == "" {
		opts.CookieName = "auth-storage"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.Sort == "" {
		opts.Sort = "id,desc"
	}

	return &Handler{
		api:      api,
		sessions: manager,
		cookies:  cookies,
		uploader: uploader,
		opts:     opts,
		logger:   logger,
	}
}

// apiFor returns a client authenticated as the request's session.
func (h *Handler) apiFor(c *gin.Context) *client.Client {
	s := currentSession(c)
	if s == nil {
		return h.api.WithTokens(client.StaticToken(""))
	}
	return h.api.WithTokens(s)
}

// message picks the text shown to the user for a failed call.
func message(err error, fallback string) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func (h *Handler) ShowLogin(c *gin.Context) {
	h.render(c, http.StatusOK, "login.html", gin.H{"Title": "Sign in"})
}

func (h *Handler) Login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "login.html", gin.H{
			"Title": "Sign in",
			"Email": form.Email,
			"Error": "Email and password are required",
		})
		return
	}

	token, err := h.api.Auth().Login(c.Request.Context(), models.Credentials{
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		h.logger.WithError(err).WithField("email", form.Email).Warn("Login failed")
		h.render(c, http.StatusUnauthorized, "login.html", gin.H{
			"Title": "Sign in",
			"Email": form.Email,
			"Error": message(err, "Invalid email or password"),
		})
		return
	}

	// The authenticated session always lives under a key minted here, never
	// under the one the browser presented before login.
	ctx := c.Request.Context()
	var sess *session.Session
	key, err := h.issueKey(c)
	if err == nil {
		sess, err = h.sessions.Open(ctx, key)
	}
	if err == nil {
		err = sess.Login(ctx, token)
	}
	if err != nil {
		status, problem := loginFailure(err)
		h.logger.WithError(err).Error("Failed to establish session")
		h.render(c, status, "login.html", gin.H{
			"Title": "Sign in",
			"Email": form.Email,
			"Error": problem,
		})
		return
	}

	if previous := currentSession(c); previous != nil && previous.Key() != sess.Key() {
		if err := previous.Logout(ctx); err != nil {
			h.logger.WithError(err).Warn("Failed to drop pre-login session")
		}
	}
	c.Set(sessionContextKey, sess)

	c.Redirect(http.StatusFound, "/home")
}

// loginFailure maps a failure to establish the session to the status and
// message of the login view.
func loginFailure(err error) (int, string) {
	if errors.Is(err, session.ErrMalformedToken) || errors.Is(err, session.ErrTokenExpired) {
		return http.StatusBadGateway, "The server returned an unusable token. Please try again."
	}
	return http.StatusInternalServerError, "Your session could not be saved. Please try again."
}

func (h *Handler) ShowRegister(c *gin.Context) {
	h.render(c, http.StatusOK, "register.html", gin.H{"Title": "Create account"})
}

func (h *Handler) Register(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "register.html", gin.H{
			"Title": "Create account",
			"Form":  form,
			"Error": "All fields are required",
		})
		return
	}

	err := h.api.Auth().Register(c.Request.Context(), models.Registration{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		h.logger.WithError(err).WithField("email", form.Email).Warn("Registration failed")
		h.render(c, http.StatusBadRequest, "register.html", gin.H{
			"Title": "Create account",
			"Form":  form,
			"Error": message(err, "Registration failed"),
		})
		return
	}

	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) Logout(c *gin.Context) {
	if s := currentSession(c); s != nil {
		if err := s.Logout(c.Request.Context()); err != nil {
			h.logger.WithError(err).Error("Failed to remove persisted session")
		}
	}
	if _, err := h.issueKey(c); err != nil {
		h.logger.WithError(err).Error("Failed to rotate session cookie")
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
