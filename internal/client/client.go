// Package client provides HTTP clients for the remote listing API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"imobiliaria/web/internal/models"
)

var (
	// ErrUnauthenticated is returned before any network I/O when no token is available.
	ErrUnauthenticated = errors.New("client: not authenticated")
	// ErrUnauthorized matches an *APIError whose status is 401.
	ErrUnauthorized = errors.New("client: token rejected by server")
	// ErrForbidden matches an *APIError whose status is 403.
	ErrForbidden = errors.New("client: insufficient privilege")
)

// APIError is a non-success response from the remote API.
type APIError struct {
	StatusCode int
	Message    string
	Path       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	default:
		return false
	}
}

// TokenSource yields the bearer token for the current caller. An empty token means unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token() string {
	return string(t)
}

// Client is an HTTP client for the remote listing API. It is cheap to copy:
// WithTokens returns a client bound to one caller's session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	tokens     TokenSource
}

// NewClient creates a client for the API rooted at baseURL, e.g. http://localhost:8080/api
func NewClient(baseURL string, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		tokens:     StaticToken(""),
	}
}

// WithTokens returns a copy of the client that authenticates with ts.
func (c *Client) WithTokens(ts TokenSource) *Client {
	clone := *c
	clone.tokens = ts
	return &clone
}

func (c *Client) Auth() *AuthClient {
	return &AuthClient{c: c}
}

func (c *Client) Properties() *PropertyClient {
	return &PropertyClient{c: c}
}

func (c *Client) Users() *UserClient {
	return &UserClient{c: c}
}

// request describes one round trip.
type request struct {
	method   string
	path     string
	query    url.Values
	body     interface{}
	public   bool
	fallback string
}

// do performs the request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	headers := http.Header{}
	if !r.public {
		token := c.tokens.Token()
		if token == "" {
			return ErrUnauthenticated
		}
		headers.Set("Authorization", "Bearer "+token)
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		headers.Set("Content-Type", "application/json")
	}

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = headers
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.method,
			"path":   r.path,
		}).Error("API request failed")
		return fmt.Errorf("%s: %w", r.fallback, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    r.fallback,
			Path:       r.path,
		}
		var errBody models.APIError
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Message != "" {
			apiErr.Message = errBody.Message
		}

		c.logger.WithFields(logrus.Fields{
			"method": r.method,
			"path":   r.path,
			"status": resp.StatusCode,
		}).Warn("API returned an error")
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
