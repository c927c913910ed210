// Package auth logs users in against the provisioned accounts and tracks
// their sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
	"github.com/kailas-cloud/courseadvisor/internal/logger"
)

// DefaultSessionTTL applies when New is given a non-positive TTL.
const DefaultSessionTTL = 8 * time.Hour

// User is one provisioned account.
type User struct {
	Username string
	Role     domain.Role
	Salt     string
	Hash     string
}

type userKey struct {
	role     domain.Role
	username string
}

// Service verifies credentials and resolves session tokens.
type Service struct {
	users    map[userKey]User
	sessions SessionStore
	ttl      time.Duration
	logger   *zap.Logger
}

// New creates an auth service. Usernames are matched case-insensitively.
func New(users []User, sessions SessionStore, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	m := make(map[userKey]User, len(users))
	for _, u := range users {
		m[userKey{role: u.Role, username: normalize(u.Username)}] = u
	}
	return &Service{users: m, sessions: sessions, ttl: ttl, logger: logger}
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// dummy keeps the work done for unknown users equal to a real comparison.
var dummy = User{Salt: "courseadvisor", Hash: strings.Repeat("0", 64)}

// Login checks the password of the account registered for (role, username)
// and opens a session. Every failure is ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, role domain.Role, username, password string) (string, domain.Session, error) {
	u, known := s.users[userKey{role: role, username: normalize(username)}]
	if !known {
		u = dummy
	}
	if !VerifyPassword(password, u.Salt, u.Hash) || !known {
		logger.FromContext(ctx, s.logger).Info("Login rejected",
			zap.String("role", string(role)),
			zap.String("username", username),
		)
		return "", domain.Anonymous, domain.ErrInvalidCredentials
	}

	token := uuid.NewString()
	sess := domain.Session{LoggedIn: true, Role: u.Role, Username: u.Username}
	if err := s.sessions.Save(ctx, token, sess, s.ttl); err != nil {
		return "", domain.Anonymous, fmt.Errorf("save session: %w", err)
	}
	return token, sess, nil
}

// Resolve returns the session behind token, Anonymous when there is none.
func (s *Service) Resolve(ctx context.Context, token string) domain.Session {
	if token == "" {
		return domain.Anonymous
	}
	sess, err := s.sessions.Find(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrUnauthenticated) {
			logger.FromContext(ctx, s.logger).Warn("Session lookup failed", zap.Error(err))
		}
		return domain.Anonymous
	}
	return sess
}

// Logout ends the session behind token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// TTL returns the session lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }
