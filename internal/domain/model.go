package domain

import "context"

// LanguageModel completes a single prompt. No conversation state is kept between calls.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// Completion is one model response with its token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Verdict is the input gate decision for a query.
type Verdict string

const (
	// VerdictAllowed means the query reached retrieval and the model.
	VerdictAllowed Verdict = "allowed"
	// VerdictRejected means the query matched an injection pattern and went no further.
	VerdictRejected Verdict = "rejected"
)

// Answer is what the advisor returns to the caller.
type Answer struct {
	Text       string
	Verdict    Verdict
	Sources    []string
	Redactions int
}

// Rejected reports whether the input gate stopped the query.
func (a Answer) Rejected() bool { return a.Verdict == VerdictRejected }
