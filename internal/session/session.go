package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"imobiliaria/web/internal/models"
)

// Repository persists session state under an opaque key.
type Repository interface {
	LoadSession(ctx context.Context, key string) (models.SessionState, bool, error)
	SaveSession(ctx context.Context, key string, state models.SessionState) error
	DeleteSession(ctx context.Context, key string) error
}

// Manager opens the session of one browser by its storage key.
type Manager struct {
	repo   Repository
	logger *logrus.Logger
	now    func() time.Time
}

func NewManager(repo Repository, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Manager{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Open rehydrates the session stored under key. The token is not revalidated:
// a revoked or expired token is only noticed on the next failed remote call.
func (m *Manager) Open(ctx context.Context, key string) (*Session, error) {
	s := &Session{key: key, manager: m}

	state, found, err := m.repo.LoadSession(ctx, key)
	if err != nil {
		return nil, err
	}
	if found && state.Token != "" {
		state.Authenticated = true
		s.state = state
	}

	return s, nil
}

// Session is the authentication state of a single browser.
type Session struct {
	mu      sync.RWMutex
	key     string
	manager *Manager
	state   models.SessionState
}

// Login decodes the token's claims and establishes an authenticated session.
// On failure every field is cleared and the decoding error is returned.
func (s *Session) Login(ctx context.Context, token string) error {
	claims, err := Decode(token)
	if err == nil && claims.Expired(s.manager.now()) {
		err = fmt.Errorf("%w at %s", ErrTokenExpired, claims.Expiry().Format(time.RFC3339))
	}
	if err != nil {
		s.mu.Lock()
		s.state = models.SessionState{}
		s.mu.Unlock()
		return err
	}

	state := models.SessionState{
		Token:         token,
		Role:          claims.Role,
		SubjectID:     claims.ID,
		Subject:       claims.Subject,
		ExpiresAt:     claims.Expiry(),
		Authenticated: true,
	}

	if err := s.manager.repo.SaveSession(ctx, s.key, state); err != nil {
		s.mu.Lock()
		s.state = models.SessionState{}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.manager.logger.WithFields(logrus.Fields{
		"subject_id": state.SubjectID,
		"role":       state.Role,
	}).Info("Session established")

	return nil
}

// Logout clears all session fields, whether or not the persisted record could be removed.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	subjectID := s.state.SubjectID
	s.state = models.SessionState{}
	s.mu.Unlock()

	if err := s.manager.repo.DeleteSession(ctx, s.key); err != nil {
		return err
	}

	s.manager.logger.WithField("subject_id", subjectID).Info("Session cleared")
	return nil
}

func (s *Session) Key() string {
	return s.key
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

func (s *Session) Role() models.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Role
}

func (s *Session) SubjectID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.SubjectID
}

func (s *Session) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Subject
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Authenticated
}

// State returns a copy of the current state.
func (s *Session) State() models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CanManage reports whether the session may edit the given listing:
// admins always, brokers only their own listings.
func (s *Session) CanManage(p models.Property) bool {
	state := s.State()
	switch state.Role {
	case models.RoleAdmin:
		return true
	case models.RoleClient, "":
		return false
	default:
		return state.SubjectID == p.BrokerID
	}
}
