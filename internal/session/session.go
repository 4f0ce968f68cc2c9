// Package session holds the per-user context the portal threads into every
// backend call. Nothing in the portal reads identity from ambient state; a
// *Session is passed explicitly to the fetch wrapper, binders and dispatcher.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

const (
	CookieName = "hrms_session"

	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	FullName      string    `json:"fullName"`
	BackendCookie string    `json:"backendCookie"`
	CSRF          string    `json:"csrf"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (s *Session) IsAdmin() bool {
	return s != nil && strings.EqualFold(s.Role, RoleAdmin)
}

// DisplayName is what the page header greets the user with.
func (s *Session) DisplayName() string {
	if s == nil {
		return ""
	}
	if name := strings.TrimSpace(s.FullName); name != "" {
		return name
	}
	return s.Email
}

type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
}
