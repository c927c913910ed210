package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

func TestHashPassword_KnownVector(t *testing.T) {
	// sha256("saltpassword")
	const want = "13601bda4ea78e55a07b98866d2be6be0744e3866f13c00c811cab608a28f322"
	if got := HashPassword("password", "salt"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt(16)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateSalt(16)
	if a == b {
		t.Error("salts must differ")
	}
	raw, err := base64.StdEncoding.DecodeString(a)
	if err != nil || len(raw) != 16 {
		t.Errorf("expected 16 base64 bytes, got %d (%v)", len(raw), err)
	}
	if s, _ := GenerateSalt(0); s == "" {
		t.Error("non-positive length must fall back to the default")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash := HashPassword("s3cret", "abc")
	if !VerifyPassword("s3cret", "abc", hash) {
		t.Error("expected match")
	}
	if !VerifyPassword("s3cret", "abc", "  "+strings.ToUpper(hash)+" ") {
		t.Error("stored hash should match case-insensitively")
	}
	if VerifyPassword("wrong", "abc", hash) || VerifyPassword("s3cret", "abd", hash) {
		t.Error("expected mismatch")
	}
}

func newTestService(t *testing.T) (*Service, *MemorySessions) {
	t.Helper()
	store := NewMemorySessions()
	users := []User{
		{Username: "admin", Role: domain.RoleAdmin, Salt: "s1", Hash: HashPassword("adminpw", "s1")},
		{Username: "Student", Role: domain.RoleUser, Salt: "s2", Hash: HashPassword("userpw", "s2")},
	}
	return New(users, store, time.Hour, zap.NewNop()), store
}

func TestLogin(t *testing.T) {
	s, store := newTestService(t)
	ctx := context.Background()

	token, sess, err := s.Login(ctx, domain.RoleUser, "student", "userpw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" || !sess.LoggedIn || sess.Role != domain.RoleUser || sess.Username != "Student" {
		t.Fatalf("unexpected session %+v (token %q)", sess, token)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 stored session, got %d", store.Len())
	}
	if got := s.Resolve(ctx, token); got != sess {
		t.Errorf("Resolve: got %+v, want %+v", got, sess)
	}
}

func TestLogin_Failures(t *testing.T) {
	s, store := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		role     domain.Role
		user, pw string
	}{
		{"wrong password", domain.RoleAdmin, "admin", "nope"},
		{"unknown user", domain.RoleAdmin, "ghost", "adminpw"},
		{"wrong role", domain.RoleUser, "admin", "adminpw"},
		{"empty", domain.RoleUser, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, sess, err := s.Login(ctx, tt.role, tt.user, tt.pw)
			if !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if token != "" || sess.LoggedIn {
				t.Errorf("failed login must not open a session")
			}
		})
	}
	if store.Len() != 0 {
		t.Errorf("expected no sessions, got %d", store.Len())
	}
}

func TestResolveAndLogout(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	if got := s.Resolve(ctx, ""); got.LoggedIn {
		t.Error("empty token must resolve to anonymous")
	}
	if got := s.Resolve(ctx, "not-a-token"); got.LoggedIn {
		t.Error("unknown token must resolve to anonymous")
	}

	token, _, err := s.Login(ctx, domain.RoleAdmin, "admin", "adminpw")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got := s.Resolve(ctx, token); got.LoggedIn {
		t.Error("session must be gone after logout")
	}
}

func TestMemorySessions_Expiry(t *testing.T) {
	m := NewMemorySessions()
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()
	sess := domain.Session{LoggedIn: true, Role: domain.RoleUser, Username: "u"}

	if err := m.Save(ctx, "t1", sess, time.Minute); err != nil {
		t.Fatal(err)
	}
	if got, err := m.Find(ctx, "t1"); err != nil || got != sess {
		t.Fatalf("Find before expiry: %+v, %v", got, err)
	}

	now = now.Add(time.Minute)
	if _, err := m.Find(ctx, "t1"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after expiry, got %v", err)
	}

	_ = m.Save(ctx, "t2", sess, time.Minute)
	now = now.Add(2 * time.Minute)
	_ = m.Save(ctx, "t3", sess, time.Minute)
	if m.Len() != 1 {
		t.Errorf("expired sessions must be swept on write, have %d", m.Len())
	}
}
