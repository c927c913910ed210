package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
	"github.com/kailas-cloud/courseadvisor/internal/logger"
	healthuc "github.com/kailas-cloud/courseadvisor/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/courseadvisor/internal/usecase/ingest"
	usageuc "github.com/kailas-cloud/courseadvisor/internal/usecase/usage"
)

// archiveField is the multipart field carrying the uploaded zip.
const archiveField = "archive"

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// Authenticator logs users in and out.
type Authenticator interface {
	SessionResolver
	Login(ctx context.Context, role domain.Role, username, password string) (string, domain.Session, error)
	Logout(ctx context.Context, token string) error
	TTL() time.Duration
}

// Advisor answers questions.
type Advisor interface {
	Ask(ctx context.Context, sess domain.Session, query string) (domain.Answer, error)
}

// Ingester rebuilds and describes the course index.
type Ingester interface {
	Ingest(ctx context.Context, sess domain.Session, archive io.Reader) (ingestuc.Summary, error)
	Status(ctx context.Context, sess domain.Session) (domain.IndexInfo, error)
}

// UsageReporter reports the embedding budget.
type UsageReporter interface {
	GetReport(ctx context.Context, sess domain.Session) (usageuc.Report, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Options tune the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	SecureCookies  bool
}

// Server serves the advisor HTTP API.
type Server struct {
	auth          Authenticator
	advisor       Advisor
	ingest        Ingester
	usage         UsageReporter
	health        HealthChecker
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	auth Authenticator,
	advisor Advisor,
	ingest Ingester,
	usage UsageReporter,
	health HealthChecker,
	opts Options,
	logger *zap.Logger,
) *Server {
	s := &Server{
		auth:    auth,
		advisor: advisor,
		ingest:  ingest,
		usage:   usage,
		health:  health,
		opts:    opts,
		logger:  logger,
	}
	s.errorHandlers = defaultErrorHandlers()
	return s
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Post("/login", s.Login)
	r.Post("/logout", s.Logout)
	r.Post("/ask", s.Ask)
	r.Post("/ingest", s.Ingest)
	r.Get("/index", s.GetIndex)
	r.Get("/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
}

// Login handles POST /login.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		// an unknown role is indistinguishable from a wrong password
		s.handleDomainError(w, r, domain.ErrInvalidCredentials)
		return
	}

	token, sess, err := s.auth.Login(r.Context(), role, req.Username, req.Password)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ttl := s.auth.TTL()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		Role:      string(sess.Role),
		Username:  sess.Username,
		ExpiresAt: time.Now().Add(ttl).UTC(),
	})
}

// Logout handles POST /logout. Logging out without a session is not an error.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), tokenFrom(r)); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}

	ans, err := s.advisor.Ask(r.Context(), domain.SessionFromContext(r.Context()), req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setUsageHeaders(w, domain.UsageFromContext(r.Context()))
	writeJSON(w, http.StatusOK, answerToResponse(ans))
}

// Ingest handles POST /ingest (multipart, field "archive").
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	sess := domain.SessionFromContext(r.Context())
	if err := sess.RequireAdmin(); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeUploadTooLarge, "the archive exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "expected a multipart form with an \"archive\" file")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, _, err := r.FormFile(archiveField)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "missing \"archive\" file")
		return
	}
	defer file.Close()

	sum, err := s.ingest.Ingest(r.Context(), sess, file)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setUsageHeaders(w, domain.UsageFromContext(r.Context()))
	writeJSON(w, http.StatusOK, summaryToResponse(sum))
}

// GetIndex handles GET /index.
func (s *Server) GetIndex(w http.ResponseWriter, r *http.Request) {
	info, err := s.ingest.Status(r.Context(), domain.SessionFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexInfoToResponse(info))
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	report, err := s.usage.GetReport(r.Context(), domain.SessionFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usageToResponse(report))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.RequestUsage) {
	if usage == nil || !usage.Used {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	w.Header().Set("X-Prompt-Tokens", strconv.Itoa(usage.PromptTokens))
	w.Header().Set("X-Completion-Tokens", strconv.Itoa(usage.CompletionTokens))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
