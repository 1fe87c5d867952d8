package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"imobiliaria/web/internal/client"
	"imobiliaria/web/internal/session"
)

const (
	sessionContextKey = "session"
	cookieValueKey    = "key"
)

func currentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionContextKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

// LoadSession resolves the browser's storage key from the signed cookie,
// issuing a new key on first visit, and rehydrates its session.
func (h *Handler) LoadSession(c *gin.Context) {
	cookie, err := h.cookies.Get(c.Request, h.opts.CookieName)
	if err != nil {
		// A cookie signed with another secret decodes into a fresh session
		h.logger.WithError(err).Debug("Discarding unreadable session cookie")
	}

	key, _ := cookie.Values[cookieValueKey].(string)
	if key == "" {
		if key, err = h.issueKey(c); err != nil {
			h.logger.WithError(err).Error("Failed to save session cookie")
		}
	}

	sess, err := h.sessions.Open(c.Request.Context(), key)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load session")
		h.renderError(c, http.StatusInternalServerError, "Your session could not be loaded. Please try again.")
		c.Abort()
		return
	}

	c.Set(sessionContextKey, sess)
	c.Next()
}

// issueKey writes a newly generated storage key into the session cookie.
func (h *Handler) issueKey(c *gin.Context) (string, error) {
	cookie, err := h.cookies.Get(c.Request, h.opts.CookieName)
	if cookie == nil {
		return "", err
	}

	key := uuid.NewString()
	cookie.Values[cookieValueKey] = key
	if err := cookie.Save(c.Request, c.Writer); err != nil {
		return key, err
	}
	return key, nil
}

// RequireSession redirects unauthenticated browsers to the login view.
func RequireSession(c *gin.Context) {
	s := currentSession(c)
	if s == nil || !s.Authenticated() {
		c.Redirect(http.StatusFound, "/")
		c.Abort()
		return
	}
	c.Next()
}

// RedirectIfAuthenticated sends a logged in browser away from the login and register views.
func RedirectIfAuthenticated(c *gin.Context) {
	if s := currentSession(c); s != nil && s.Authenticated() {
		c.Redirect(http.StatusFound, "/home")
		c.Abort()
		return
	}
	c.Next()
}

// RequestLogger writes one structured line per request.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("Handled request")
			return
		}
		entry.Info("Handled request")
	}
}

// sessionExpired handles a token the remote service no longer accepts by
// clearing the session and sending the browser to the login view.
func (h *Handler) sessionExpired(c *gin.Context, err error) bool {
	if !errors.Is(err, client.ErrUnauthorized) && !errors.Is(err, client.ErrUnauthenticated) {
		return false
	}

	if s := currentSession(c); s != nil {
		if logoutErr := s.Logout(c.Request.Context()); logoutErr != nil {
			h.logger.WithError(logoutErr).Error("Failed to clear rejected session")
		}
	}
	h.logger.WithError(err).Warn("Session rejected by API, logging out")
	c.Redirect(http.StatusFound, "/")
	c.Abort()
	return true
}
