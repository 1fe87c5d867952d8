package models

import "time"

// Role is the authorization role carried in the token claims.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleBroker Role = "CORRETOR"
	RoleClient Role = "CLIENTE"
)

// Valid reports whether r is a role the remote API issues.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBroker, RoleClient:
		return true
	default:
		return false
	}
}

// Label is the human readable role name.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleBroker:
		return "Broker"
	case RoleClient:
		return "Client"
	default:
		return string(r)
	}
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type UserCreate struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// UserUpdate is a partial profile update; empty fields are omitted.
type UserUpdate struct {
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Token struct {
	Token string `json:"token"`
}

// APIError is the error body the remote service returns.
type APIError struct {
	Timestamp string `json:"timestamp,omitempty"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

// SessionState is the client held authentication state derived from a token.
type SessionState struct {
	Token         string    `json:"token,omitempty"`
	Role          Role      `json:"role,omitempty"`
	SubjectID     int64     `json:"id,omitempty"`
	Subject       string    `json:"sub,omitempty"`
	ExpiresAt     time.Time `json:"exp,omitempty"`
	Authenticated bool      `json:"isAuthenticated"`
}
