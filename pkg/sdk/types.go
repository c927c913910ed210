package courseadvisor

import "time"

// Role selects the permissions of a session.
type Role string

// Roles.
const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	Role      Role      `json:"role"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Usage is the token spend the server reported for one call.
type Usage struct {
	EmbeddingTokens  int
	PromptTokens     int
	CompletionTokens int
}

// Answer is the advisor's reply to one question.
type Answer struct {
	Text       string   `json:"answer"`
	Rejected   bool     `json:"rejected"`
	Sources    []string `json:"sources"`
	Redactions int      `json:"redactions"`
	Usage      Usage    `json:"-"`
}

// IndexInfo describes the active index snapshot.
type IndexInfo struct {
	SnapshotID string    `json:"snapshot_id"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Records    int       `json:"records"`
	BuiltAt    time.Time `json:"built_at"`
}

// FileFailure is a corpus file the server could not read.
type FileFailure struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// IngestSummary reports one index rebuild.
type IngestSummary struct {
	Index      IndexInfo     `json:"index"`
	Documents  int           `json:"documents"`
	Chunks     int           `json:"chunks"`
	Failures   []FileFailure `json:"failures"`
	Skipped    []string      `json:"skipped"`
	DurationMs int64         `json:"duration_ms"`
	Usage      Usage         `json:"-"`
}

// BudgetWindow is the embedding budget over one day or month.
// TokensRemaining is -1 when the window has no limit.
type BudgetWindow struct {
	StartAt         time.Time `json:"start_at"`
	ResetsAt        time.Time `json:"resets_at"`
	TokensLimit     int64     `json:"tokens_limit"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensRemaining int64     `json:"tokens_remaining"`
	IsExhausted     bool      `json:"is_exhausted"`
}

// UsageReport contains embedding budget statistics.
type UsageReport struct {
	Provider string       `json:"provider"`
	Day      BudgetWindow `json:"day"`
	Month    BudgetWindow `json:"month"`
}

// HealthStatus represents the aggregated server health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded"
	Checks map[string]string `json:"checks"`
}
