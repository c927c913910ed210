package chi

import (
	"time"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
	ingestuc "github.com/kailas-cloud/courseadvisor/internal/usecase/ingest"
	usageuc "github.com/kailas-cloud/courseadvisor/internal/usecase/usage"
)

type errorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type loginRequest struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Answer     string   `json:"answer"`
	Rejected   bool     `json:"rejected"`
	Sources    []string `json:"sources"`
	Redactions int      `json:"redactions"`
}

type indexInfoResponse struct {
	SnapshotID string    `json:"snapshot_id"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Records    int       `json:"records"`
	BuiltAt    time.Time `json:"built_at"`
}

type fileFailure struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

type ingestResponse struct {
	Index      indexInfoResponse `json:"index"`
	Documents  int               `json:"documents"`
	Chunks     int               `json:"chunks"`
	Failures   []fileFailure     `json:"failures"`
	Skipped    []string          `json:"skipped"`
	DurationMs int64             `json:"duration_ms"`
}

type budgetWindow struct {
	StartAt   time.Time `json:"start_at"`
	ResetsAt  time.Time `json:"resets_at"`
	Limit     int64     `json:"tokens_limit"`
	Used      int64     `json:"tokens_used"`
	Remaining int64     `json:"tokens_remaining"`
	Exhausted bool      `json:"is_exhausted"`
}

type usageResponse struct {
	Provider string       `json:"provider,omitempty"`
	Day      budgetWindow `json:"day"`
	Month    budgetWindow `json:"month"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func answerToResponse(a domain.Answer) askResponse {
	sources := a.Sources
	if sources == nil {
		sources = []string{}
	}
	return askResponse{
		Answer:     a.Text,
		Rejected:   a.Rejected(),
		Sources:    sources,
		Redactions: a.Redactions,
	}
}

func indexInfoToResponse(info domain.IndexInfo) indexInfoResponse {
	return indexInfoResponse{
		SnapshotID: info.SnapshotID,
		Model:      info.Model,
		Dimensions: info.Dimensions,
		Records:    info.Records,
		BuiltAt:    info.BuiltAt,
	}
}

func summaryToResponse(sum ingestuc.Summary) ingestResponse {
	failures := make([]fileFailure, len(sum.Failures))
	for i, f := range sum.Failures {
		failures[i] = fileFailure{File: f.File, Reason: f.Err.Error()}
	}
	skipped := sum.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	return ingestResponse{
		Index:      indexInfoToResponse(sum.Index),
		Documents:  sum.Documents,
		Chunks:     sum.Chunks,
		Failures:   failures,
		Skipped:    skipped,
		DurationMs: sum.Duration.Milliseconds(),
	}
}

func usageToResponse(r usageuc.Report) usageResponse {
	return usageResponse{
		Provider: r.Provider,
		Day:      windowToResponse(r.Day),
		Month:    windowToResponse(r.Month),
	}
}

func windowToResponse(w usageuc.Window) budgetWindow {
	return budgetWindow{
		StartAt:   w.Start,
		ResetsAt:  w.End,
		Limit:     w.Limit,
		Used:      w.Used,
		Remaining: w.Remaining,
		Exhausted: w.Exhausted,
	}
}
