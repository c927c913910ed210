package chi

import (
	"context"
	"net/http"
	"strings"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "courseadvisor_session"

// exemptPaths are routes that never need a session (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// SessionResolver maps a token to the session behind it.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) domain.Session
}

// SessionMiddleware resolves the caller's token into a domain.Session on the
// request context. A missing, malformed or expired token yields the anonymous
// session; handlers decide whether that is enough.
func SessionMiddleware(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			sess := domain.Anonymous
			if token := tokenFrom(r); token != "" {
				sess = resolver.Resolve(r.Context(), token)
			}
			next.ServeHTTP(w, r.WithContext(domain.ContextWithSession(r.Context(), sess)))
		})
	}
}

// tokenFrom reads a Bearer token, falling back to the session cookie.
func tokenFrom(r *http.Request) string {
	const bearerPrefix = "Bearer "
	if auth := r.Header.Get("Authorization"); auth != "" {
		if !strings.HasPrefix(auth, bearerPrefix) {
			return ""
		}
		return strings.TrimSpace(auth[len(bearerPrefix):])
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
