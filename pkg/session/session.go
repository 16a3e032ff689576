// Package session carries the authenticated caller into core operations.
// A Session is passed explicitly into every cart and checkout call; there is
// no process-wide "current user".
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var (
	ErrNotLoggedIn    = errors.New("user not logged in")
	ErrSessionExpired = errors.New("session has expired, please login again")
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	echoKey = "session"
)

type Session struct {
	UserID    uuid.UUID
	Role      string
	ExpiresAt time.Time
}

func New(userID uuid.UUID, role string, expiresAt time.Time) *Session {
	return &Session{UserID: userID, Role: role, ExpiresAt: expiresAt}
}

// Validate fails when s is nil, anonymous, or past its expiry. A zero
// ExpiresAt never expires.
func (s *Session) Validate(now time.Time) error {
	if s == nil || s.UserID == uuid.Nil {
		return ErrNotLoggedIn
	}
	if !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
		return ErrSessionExpired
	}
	return nil
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

func IntoEcho(c echo.Context, s *Session) {
	c.Set(echoKey, s)
}

func FromEcho(c echo.Context) (*Session, bool) {
	s, ok := c.Get(echoKey).(*Session)
	return s, ok && s != nil
}
