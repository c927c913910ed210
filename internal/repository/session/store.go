// Package session keeps login sessions in the cache server so that every
// replica behind a load balancer sees the same logins.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/courseadvisor/internal/db"
	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "session:"

// kv is the subset of the cache API sessions need.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type record struct {
	Role     domain.Role `json:"role"`
	Username string      `json:"username"`
}

// Store implements auth.SessionStore on top of the cache server.
type Store struct {
	kv kv
}

// New creates a session store.
func New(kv kv) *Store {
	return &Store{kv: kv}
}

// Save stores the session with an expiry.
func (s *Store) Save(ctx context.Context, token string, sess domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(record{Role: sess.Role, Username: sess.Username})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.kv.SetWithTTL(ctx, keyPrefix+token, data, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Find loads the session for token. Missing keys are ErrUnauthenticated.
func (s *Store) Find(ctx context.Context, token string) (domain.Session, error) {
	data, err := s.kv.Get(ctx, keyPrefix+token)
	if errors.Is(err, db.ErrKeyNotFound) {
		return domain.Anonymous, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.Anonymous, fmt.Errorf("load session: %w", err)
	}

	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.Anonymous, fmt.Errorf("decode session: %w", err)
	}
	return domain.Session{LoggedIn: true, Role: r.Role, Username: r.Username}, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.kv.Del(ctx, keyPrefix+token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
