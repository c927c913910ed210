package domain

import (
	"context"
	"fmt"
	"strings"
)

// Role is the access level of a logged-in user.
type Role string

const (
	// RoleAdmin may ingest course data and ask questions.
	RoleAdmin Role = "Admin"
	// RoleUser may ask questions.
	RoleUser Role = "User"
)

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "user":
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Session is the caller identity passed explicitly into every core operation.
type Session struct {
	LoggedIn bool
	Role     Role
	Username string
}

// Anonymous is the session of a caller that has not logged in.
var Anonymous = Session{}

// RequireLogin returns ErrUnauthenticated unless the session is logged in.
func (s Session) RequireLogin() error {
	if !s.LoggedIn {
		return ErrUnauthenticated
	}
	return nil
}

// RequireAdmin returns ErrUnauthenticated or ErrForbidden unless the caller is an Admin.
func (s Session) RequireAdmin() error {
	if err := s.RequireLogin(); err != nil {
		return err
	}
	if s.Role != RoleAdmin {
		return ErrForbidden
	}
	return nil
}

type sessionKey struct{}

// ContextWithSession stores the caller session in the context.
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session placed by the auth middleware, Anonymous otherwise.
func SessionFromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(sessionKey{}).(Session); ok {
		return s
	}
	return Anonymous
}
