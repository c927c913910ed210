package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadableArchive signals an upload that is not a readable archive.
	ErrUnreadableArchive = errors.New("unreadable archive")
	// ErrUnreadableTable signals a single archive member that could not be parsed.
	ErrUnreadableTable = errors.New("unreadable table")
	// ErrEmptyCorpus signals an archive without any readable table.
	ErrEmptyCorpus = errors.New("archive contains no readable tables")
	// ErrInvalidChunkConfig signals chunk length/overlap outside 0 <= overlap < length.
	ErrInvalidChunkConfig = errors.New("invalid chunk config")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrIndexNotFound signals that no index has been built at the configured path.
	ErrIndexNotFound = errors.New("index not found")
	// ErrDimensionMismatch signals vectors of a different size than the index holds.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidTopK signals a non-positive result count.
	ErrInvalidTopK = errors.New("k must be a positive integer")
	// ErrEmptyQuery signals a blank question.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrModelProviderError signals a language model failure.
	ErrModelProviderError = errors.New("model provider error")

	// ErrUnauthenticated signals a request without a logged-in session.
	ErrUnauthenticated = errors.New("not logged in")
	// ErrForbidden signals a role that may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials signals a failed login.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UnreadableTableError records why one archive member was skipped.
type UnreadableTableError struct {
	File string
	Err  error
}

func (e *UnreadableTableError) Error() string {
	return fmt.Sprintf("%s %q: %v", ErrUnreadableTable.Error(), e.File, e.Err)
}

func (e *UnreadableTableError) Unwrap() []error { return []error{ErrUnreadableTable, e.Err} }

// DimensionMismatchError wraps ErrDimensionMismatch with both sizes.
type DimensionMismatchError struct {
	Index    int
	Embedder int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: index has %d dimensions, embedder produced %d",
		ErrDimensionMismatch.Error(), e.Index, e.Embedder)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }
