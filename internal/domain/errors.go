package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a request that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrVectorSearch signals a failed nearest-neighbour query.
	ErrVectorSearch = errors.New("vector search failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrStorageUnavailable signals a failed database or cache operation.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrRerankFailed signals a reranking backend failure.
	ErrRerankFailed = errors.New("rerank failed")
	// ErrGenerationFailed signals a chat model failure before any output was produced.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrUnsupportedProvider signals an unknown or unconfigured chat provider.
	ErrUnsupportedProvider = errors.New("unsupported llm provider")
	// ErrPlanLimitExceeded signals that the tenant's plan ceiling has been reached.
	ErrPlanLimitExceeded = errors.New("plan limit exceeded")
	// ErrRateLimited signals a provider-side rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// VectorSearchError wraps a storage failure that happened while running a similarity query.
type VectorSearchError struct {
	Op  string
	Err error
}

func (e *VectorSearchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrVectorSearch.Error(), e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is / errors.As.
func (e *VectorSearchError) Unwrap() []error { return []error{ErrVectorSearch, e.Err} }

// NewVectorSearchError creates a vector search error for the given operation.
func NewVectorSearchError(op string, err error) error {
	return &VectorSearchError{Op: op, Err: err}
}

// ValidationError carries a client-facing validation message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// NewValidationError creates a validation error whose message is safe to return to callers.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
