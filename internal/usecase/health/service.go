package health

import (
	"context"
	"errors"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckMissing means no index has been built yet. It does not degrade the service.
	CheckMissing CheckResult = "missing"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	index     IndexInspector
	cache     CachePinger
	embedding EmbeddingChecker
	llm       ModelChecker
}

// New creates a Service. cache and embedding can be nil.
func New(index IndexInspector, cache CachePinger, embedding EmbeddingChecker) *Service {
	return &Service{index: index, cache: cache, embedding: embedding}
}

// WithLLM adds a language model reachability check reported as "llm".
func (s *Service) WithLLM(llm ModelChecker) *Service {
	s.llm = llm
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	switch _, err := s.index.Info(ctx); {
	case err == nil:
		checks["index"] = CheckOK
	case errors.Is(err, domain.ErrIndexNotFound):
		checks["index"] = CheckMissing
	default:
		checks["index"] = CheckError
	}

	if s.cache != nil {
		checks["cache"] = result(s.cache.Ping(ctx))
	}
	if s.embedding != nil {
		checks["embedding"] = result(s.embedding.HealthCheck(ctx))
	}
	if s.llm != nil {
		checks["llm"] = result(s.llm.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
