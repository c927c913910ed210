package auth

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// SessionStore keeps logged-in sessions by token.
// Find returns domain.ErrUnauthenticated for unknown or expired tokens.
type SessionStore interface {
	Save(ctx context.Context, token string, s domain.Session, ttl time.Duration) error
	Find(ctx context.Context, token string) (domain.Session, error)
	Delete(ctx context.Context, token string) error
}

type memoryEntry struct {
	session domain.Session
	expires time.Time
}

// MemorySessions is a process-local SessionStore used when no cache server is configured.
type MemorySessions struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemorySessions creates an empty store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{entries: make(map[string]memoryEntry), now: time.Now}
}

// Save stores s under token until ttl elapses. Expired entries are swept on write.
func (m *MemorySessions) Save(_ context.Context, token string, s domain.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[token] = memoryEntry{session: s, expires: now.Add(ttl)}
	return nil
}

// Find returns the session for token.
func (m *MemorySessions) Find(_ context.Context, token string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[token]
	if !ok {
		return domain.Anonymous, domain.ErrUnauthenticated
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, token)
		return domain.Anonymous, domain.ErrUnauthenticated
	}
	return e.session, nil
}

// Delete forgets token.
func (m *MemorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.entries, token)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
