package chi

import (
	"errors"
	"net/http"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeUnauthenticated        ErrorCode = "unauthenticated"
	CodeInvalidCredentials     ErrorCode = "invalid_credentials"
	CodeForbidden              ErrorCode = "forbidden"
	CodeNotFound               ErrorCode = "not_found"
	CodeIndexNotFound          ErrorCode = "index_not_found"
	CodeIndexIncompatible      ErrorCode = "index_incompatible"
	CodeUnreadableArchive      ErrorCode = "unreadable_archive"
	CodeEmptyCorpus            ErrorCode = "empty_corpus"
	CodeUploadTooLarge         ErrorCode = "upload_too_large"
	CodeEmbeddingQuotaExceeded ErrorCode = "embedding_quota_exceeded"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeModelProviderError     ErrorCode = "model_provider_error"
	CodeInternalError          ErrorCode = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// defaultErrorHandlers maps sentinels to fixed, user-safe responses. Order
// matters: the first match wins.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthenticated,
			"please log in first"),
		sentinelHandler(domain.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials,
			"invalid username or password"),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, CodeForbidden,
			"this action requires the Admin role"),
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, CodeValidationFailed,
			"please enter a question"),
		sentinelHandler(domain.ErrInvalidTopK, http.StatusBadRequest, CodeValidationFailed,
			"top_k must be a positive integer"),
		sentinelHandler(domain.ErrUnreadableArchive, http.StatusBadRequest, CodeUnreadableArchive,
			"the upload is not a readable zip archive"),
		sentinelHandler(domain.ErrEmptyCorpus, http.StatusUnprocessableEntity, CodeEmptyCorpus,
			"the archive contains no readable tables; the current course data is unchanged"),
		sentinelHandler(domain.ErrIndexNotFound, http.StatusNotFound, CodeIndexNotFound,
			"no course data has been uploaded yet"),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusConflict, CodeIndexIncompatible,
			"the course data was indexed with a different embedding model; please upload it again"),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, CodeEmbeddingQuotaExceeded,
			"the embedding budget is exhausted; please try again later"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError,
			"the embedding service is unavailable; please try again later"),
		sentinelHandler(domain.ErrModelProviderError, http.StatusBadGateway, CodeModelProviderError,
			"the advisor is unavailable right now; please try again later"),
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode, message string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, message)
		return true
	}
}
