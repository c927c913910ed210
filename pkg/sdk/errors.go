package courseadvisor

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by APIError codes.
// Use errors.Is() to check.
var (
	ErrUnauthenticated        = errors.New("not logged in")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrForbidden              = errors.New("admin role required")
	ErrValidation             = errors.New("validation failed")
	ErrIndexNotFound          = errors.New("index not found")
	ErrIndexIncompatible      = errors.New("index incompatible with embedding model")
	ErrUnreadableArchive      = errors.New("unreadable archive")
	ErrEmptyCorpus            = errors.New("empty corpus")
	ErrUploadTooLarge         = errors.New("upload too large")
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	ErrProviderUnavailable    = errors.New("provider unavailable")
)

var codeSentinels = map[string]error{
	"unauthenticated":          ErrUnauthenticated,
	"invalid_credentials":      ErrInvalidCredentials,
	"forbidden":                ErrForbidden,
	"validation_failed":        ErrValidation,
	"index_not_found":          ErrIndexNotFound,
	"index_incompatible":       ErrIndexIncompatible,
	"unreadable_archive":       ErrUnreadableArchive,
	"empty_corpus":             ErrEmptyCorpus,
	"upload_too_large":         ErrUploadTooLarge,
	"embedding_quota_exceeded": ErrEmbeddingQuotaExceeded,
	"embedding_provider_error": ErrProviderUnavailable,
	"model_provider_error":     ErrProviderUnavailable,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("courseadvisor: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is reports whether the error code maps to target.
func (e *APIError) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}
