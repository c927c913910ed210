package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
	healthuc "github.com/kailas-cloud/courseadvisor/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/courseadvisor/internal/usecase/ingest"
	usageuc "github.com/kailas-cloud/courseadvisor/internal/usecase/usage"
)

// --- Fakes ---

type fakeAuth struct {
	mapResolver
	password  string
	loggedOut []string
	logoutErr error
}

func (f *fakeAuth) Login(_ context.Context, role domain.Role, username, password string) (string, domain.Session, error) {
	for token, s := range f.mapResolver {
		if s.Role == role && s.Username == username && password == f.password {
			return token, s, nil
		}
	}
	return "", domain.Anonymous, domain.ErrInvalidCredentials
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.loggedOut = append(f.loggedOut, token)
	return f.logoutErr
}

func (f *fakeAuth) TTL() time.Duration { return time.Hour }

type fakeAdvisor struct {
	answer domain.Answer
	err    error
	panics bool
	calls  int
}

func (f *fakeAdvisor) Ask(ctx context.Context, sess domain.Session, _ string) (domain.Answer, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	if err := sess.RequireLogin(); err != nil {
		return domain.Answer{}, err
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(7)
	domain.UsageFromContext(ctx).AddModelTokens(300, 42)
	return f.answer, f.err
}

type fakeIngester struct {
	summary  ingestuc.Summary
	err      error
	received []byte
	calls    int
	info     domain.IndexInfo
	infoErr  error
}

func (f *fakeIngester) Ingest(_ context.Context, _ domain.Session, archive io.Reader) (ingestuc.Summary, error) {
	f.calls++
	f.received, _ = io.ReadAll(archive)
	return f.summary, f.err
}

func (f *fakeIngester) Status(_ context.Context, sess domain.Session) (domain.IndexInfo, error) {
	if err := sess.RequireLogin(); err != nil {
		return domain.IndexInfo{}, err
	}
	return f.info, f.infoErr
}

type fakeUsage struct {
	report usageuc.Report
}

func (f *fakeUsage) GetReport(_ context.Context, sess domain.Session) (usageuc.Report, error) {
	if err := sess.RequireAdmin(); err != nil {
		return usageuc.Report{}, err
	}
	return f.report, nil
}

type fakeHealth struct {
	report healthuc.Report
}

func (f *fakeHealth) Check(_ context.Context) healthuc.Report { return f.report }

// --- Helpers ---

type testAPI struct {
	handler http.Handler
	auth    *fakeAuth
	advisor *fakeAdvisor
	ingest  *fakeIngester
	usage   *fakeUsage
	health  *fakeHealth
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{
		auth:    &fakeAuth{mapResolver: resolver, password: "s3cret"},
		advisor: &fakeAdvisor{answer: domain.Answer{Text: "Try Data Science.", Verdict: domain.VerdictAllowed}},
		ingest:  &fakeIngester{},
		usage:   &fakeUsage{},
		health:  &fakeHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}},
	}
	srv := NewServer(api.auth, api.advisor, api.ingest, api.usage, api.health,
		Options{MaxUploadBytes: 1 << 20}, zap.NewNop())
	api.handler = srv.Handler()
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = http.NoBody
	}
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) postJSON(t *testing.T, path, token string, v any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return a.do(t, http.MethodPost, path, token, bytes.NewReader(b), "application/json")
}

func multipartArchive(t *testing.T, field string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "courses.zip")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rr.Body.String())
	}
	return resp
}
