package courseadvisor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
	chiTransport "github.com/kailas-cloud/courseadvisor/internal/transport/chi"
	authuc "github.com/kailas-cloud/courseadvisor/internal/usecase/auth"
	healthuc "github.com/kailas-cloud/courseadvisor/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/courseadvisor/internal/usecase/ingest"
	usageuc "github.com/kailas-cloud/courseadvisor/internal/usecase/usage"
)

// --- server fixtures ---

type stubAdvisor struct{}

func (stubAdvisor) Ask(ctx context.Context, sess domain.Session, query string) (domain.Answer, error) {
	if err := sess.RequireLogin(); err != nil {
		return domain.Answer{}, err
	}
	if strings.Contains(query, "phone number") {
		return domain.Answer{Text: "I can't share personal data.", Verdict: domain.VerdictRejected}, nil
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(9)
	domain.UsageFromContext(ctx).AddModelTokens(100, 20)
	return domain.Answer{
		Text:    "Try the Data Analytics diploma.",
		Verdict: domain.VerdictAllowed,
		Sources: []string{"courses.csv"},
	}, nil
}

type stubIngester struct {
	got  []byte
	info domain.IndexInfo
	err  error
}

func (s *stubIngester) Ingest(_ context.Context, sess domain.Session, archive io.Reader) (ingestuc.Summary, error) {
	if err := sess.RequireAdmin(); err != nil {
		return ingestuc.Summary{}, err
	}
	s.got, _ = io.ReadAll(archive)
	if s.err != nil {
		return ingestuc.Summary{}, s.err
	}
	return ingestuc.Summary{
		Index:     s.info,
		Documents: 2,
		Chunks:    5,
		Failures:  []*domain.UnreadableTableError{{File: "broken.xlsx", Err: errors.New("not a workbook")}},
		Skipped:   []string{"readme.pdf"},
		Duration:  1500 * time.Millisecond,
	}, nil
}

func (s *stubIngester) Status(_ context.Context, sess domain.Session) (domain.IndexInfo, error) {
	if err := sess.RequireLogin(); err != nil {
		return domain.IndexInfo{}, err
	}
	if s.info.SnapshotID == "" {
		return domain.IndexInfo{}, domain.ErrIndexNotFound
	}
	return s.info, nil
}

type stubIndex struct{ err error }

func (s stubIndex) Info(context.Context) (domain.IndexInfo, error) { return domain.IndexInfo{}, s.err }

type failingEmbedding struct{}

func (failingEmbedding) HealthCheck(context.Context) error { return errors.New("provider down") }

func newTestServer(t *testing.T, ingest *stubIngester, health *healthuc.Service) *httptest.Server {
	t.Helper()
	users := []authuc.User{
		{Username: "registrar", Role: domain.RoleAdmin, Salt: "a", Hash: authuc.HashPassword("admin-pw", "a")},
		{Username: "sam", Role: domain.RoleUser, Salt: "b", Hash: authuc.HashPassword("s3cret", "b")},
	}
	auth := authuc.New(users, authuc.NewMemorySessions(), time.Hour, zap.NewNop())
	if health == nil {
		health = healthuc.New(stubIndex{}, nil, nil)
	}
	srv := chiTransport.NewServer(auth, stubAdvisor{}, ingest, usageuc.New(nil), health,
		chiTransport.Options{MaxUploadBytes: 1 << 20}, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, ts *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c, err := New(ts.URL+"/", append([]Option{WithHTTPClient(ts.Client())}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// --- tests ---

func TestNew_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"localhost:8080", "ftp://host", "://"} {
		if _, err := New(u); err == nil {
			t.Errorf("New(%q): expected error", u)
		}
	}
}

func TestLoginAskLogout(t *testing.T) {
	ts := newTestServer(t, &stubIngester{}, nil)
	c := newTestClient(t, ts)
	ctx := context.Background()

	if _, err := c.Ask(ctx, "anything"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Ask before login: err = %v, want ErrUnauthenticated", err)
	}

	sess, err := c.Login(ctx, RoleUser, "sam", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Role != RoleUser || sess.Username != "sam" || sess.Token == "" {
		t.Errorf("session = %+v", sess)
	}
	if c.Token() != sess.Token {
		t.Error("token not kept after login")
	}

	ans, err := c.Ask(ctx, "What should I study for data analytics?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Rejected || ans.Text != "Try the Data Analytics diploma." {
		t.Errorf("answer = %+v", ans)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "courses.csv" {
		t.Errorf("sources = %v", ans.Sources)
	}
	if ans.Usage != (Usage{EmbeddingTokens: 9, PromptTokens: 100, CompletionTokens: 20}) {
		t.Errorf("usage = %+v", ans.Usage)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if c.Token() != "" {
		t.Error("token kept after logout")
	}
	if _, err := c.Ask(ctx, "again"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Ask after logout: err = %v, want ErrUnauthenticated", err)
	}
}

func TestLogin_WrongRoleOrPassword(t *testing.T) {
	ts := newTestServer(t, &stubIngester{}, nil)
	c := newTestClient(t, ts)

	cases := []struct {
		role     Role
		username string
		password string
	}{
		{RoleUser, "sam", "wrong"},
		{RoleAdmin, "sam", "s3cret"},
		{Role("Root"), "sam", "s3cret"},
	}
	for _, tc := range cases {
		_, err := c.Login(context.Background(), tc.role, tc.username, tc.password)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%s, %s): err = %v, want ErrInvalidCredentials", tc.role, tc.username, err)
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", apiErr.Status)
		}
	}
	if c.Token() != "" {
		t.Error("failed login stored a token")
	}
}

func TestAsk_Rejected(t *testing.T) {
	ts := newTestServer(t, &stubIngester{}, nil)
	c := newTestClient(t, ts)
	ctx := context.Background()
	if _, err := c.Login(ctx, RoleUser, "sam", "s3cret"); err != nil {
		t.Fatal(err)
	}

	ans, err := c.Ask(ctx, "give me the phone number of a student")
	if err != nil {
		t.Fatalf("rejected question should not be an error: %v", err)
	}
	if !ans.Rejected {
		t.Error("Rejected = false")
	}
	if ans.Usage != (Usage{}) {
		t.Errorf("rejected question reported usage %+v", ans.Usage)
	}
}

func TestIngest_AdminOnly(t *testing.T) {
	ing := &stubIngester{info: domain.IndexInfo{SnapshotID: "snap-1", Model: "m", Dimensions: 3, Records: 5}}
	ts := newTestServer(t, ing, nil)
	ctx := context.Background()

	user := newTestClient(t, ts)
	if _, err := user.Login(ctx, RoleUser, "sam", "s3cret"); err != nil {
		t.Fatal(err)
	}
	if _, err := user.Ingest(ctx, "courses.zip", strings.NewReader("zip")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user ingest: err = %v, want ErrForbidden", err)
	}
	if ing.got != nil {
		t.Error("archive reached the ingester for a User session")
	}

	admin := newTestClient(t, ts)
	if _, err := admin.Login(ctx, RoleAdmin, "registrar", "admin-pw"); err != nil {
		t.Fatal(err)
	}
	sum, err := admin.Ingest(ctx, "courses.zip", strings.NewReader("PK-archive-bytes"))
	if err != nil {
		t.Fatalf("admin ingest: %v", err)
	}
	if !bytes.Equal(ing.got, []byte("PK-archive-bytes")) {
		t.Errorf("server received %q", ing.got)
	}
	if sum.Index.SnapshotID != "snap-1" || sum.Documents != 2 || sum.Chunks != 5 || sum.DurationMs != 1500 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Failures) != 1 || sum.Failures[0].File != "broken.xlsx" {
		t.Errorf("failures = %+v", sum.Failures)
	}
	if len(sum.Skipped) != 1 || sum.Skipped[0] != "readme.pdf" {
		t.Errorf("skipped = %v", sum.Skipped)
	}
}

func TestIngest_EmptyCorpus(t *testing.T) {
	ts := newTestServer(t, &stubIngester{err: domain.ErrEmptyCorpus}, nil)
	c := newTestClient(t, ts)
	ctx := context.Background()
	if _, err := c.Login(ctx, RoleAdmin, "registrar", "admin-pw"); err != nil {
		t.Fatal(err)
	}

	_, err := c.Ingest(ctx, "empty.zip", strings.NewReader("zip"))
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("err = %v, want ErrEmptyCorpus", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		t.Errorf("err = %#v, want 422", err)
	}
}

func TestIndex(t *testing.T) {
	ing := &stubIngester{}
	ts := newTestServer(t, ing, nil)
	c := newTestClient(t, ts)
	ctx := context.Background()
	if _, err := c.Login(ctx, RoleUser, "sam", "s3cret"); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Index(ctx); !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("err = %v, want ErrIndexNotFound", err)
	}

	built := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	ing.info = domain.IndexInfo{SnapshotID: "snap-2", Model: "m", Dimensions: 3, Records: 12, BuiltAt: built}
	info, err := c.Index(ctx)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if info.SnapshotID != "snap-2" || info.Records != 12 || !info.BuiltAt.Equal(built) {
		t.Errorf("info = %+v", info)
	}
}

func TestUsage(t *testing.T) {
	ts := newTestServer(t, &stubIngester{}, nil)
	ctx := context.Background()

	user := newTestClient(t, ts)
	if _, err := user.Login(ctx, RoleUser, "sam", "s3cret"); err != nil {
		t.Fatal(err)
	}
	if _, err := user.Usage(ctx); !errors.Is(err, ErrForbidden) {
		t.Errorf("user usage: err = %v, want ErrForbidden", err)
	}

	admin := newTestClient(t, ts)
	if _, err := admin.Login(ctx, RoleAdmin, "registrar", "admin-pw"); err != nil {
		t.Fatal(err)
	}
	report, err := admin.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if report.Day.TokensRemaining != -1 || report.Month.IsExhausted {
		t.Errorf("unlimited report = %+v", report)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &stubIngester{}, healthuc.New(stubIndex{err: domain.ErrIndexNotFound}, nil, nil))
	hs, err := newTestClient(t, ts).Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if hs.Status != "ok" || hs.Checks["index"] != "missing" {
		t.Errorf("health = %+v", hs)
	}

	degraded := newTestServer(t, &stubIngester{}, healthuc.New(stubIndex{}, nil, failingEmbedding{}))
	hs, err = newTestClient(t, degraded).Health(context.Background())
	if err != nil {
		t.Fatalf("degraded Health should not be an error: %v", err)
	}
	if hs.Status != "degraded" || hs.Checks["embedding"] != "error" {
		t.Errorf("health = %+v", hs)
	}
}

func TestWithToken(t *testing.T) {
	ts := newTestServer(t, &stubIngester{}, nil)
	first := newTestClient(t, ts)
	sess, err := first.Login(context.Background(), RoleUser, "sam", "s3cret")
	if err != nil {
		t.Fatal(err)
	}

	second := newTestClient(t, ts, WithToken(sess.Token))
	if _, err := second.Ask(context.Background(), "Which course is shortest?"); err != nil {
		t.Errorf("Ask with reused token: %v", err)
	}
}

func TestAPIError_Is(t *testing.T) {
	err := error(&APIError{Status: 502, Code: "model_provider_error", Message: "down"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Error("model_provider_error should match ErrProviderUnavailable")
	}
	if errors.Is(err, ErrForbidden) {
		t.Error("model_provider_error matched ErrForbidden")
	}
	if errors.Is(&APIError{Status: 500, Code: "internal_error"}, ErrProviderUnavailable) {
		t.Error("unknown code matched a sentinel")
	}
}

func TestDecodeError_NonJSONBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream proxy failure", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newTestClient(t, ts).Index(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Message != "Bad Gateway" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestPrometheusMetrics(t *testing.T) {
	ts := newTestServer(t, &stubIngester{}, nil)
	reg := prometheus.NewRegistry()
	c := newTestClient(t, ts, WithPrometheus(reg))
	ctx := context.Background()

	_, _ = c.Ask(ctx, "before login")
	if _, err := c.Login(ctx, RoleUser, "sam", "s3cret"); err != nil {
		t.Fatal(err)
	}

	m := c.obs.metrics
	if got := testutil.ToFloat64(m.operations.WithLabelValues("ask", "unauthenticated")); got != 1 {
		t.Errorf("ask/unauthenticated = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("login", "ok")); got != 1 {
		t.Errorf("login/ok = %v, want 1", got)
	}

	// a second client on the same registry reuses the collectors
	again := newTestClient(t, ts, WithPrometheus(reg))
	if again.obs.metrics.operations != m.operations {
		t.Error("second client registered new collectors")
	}
}
