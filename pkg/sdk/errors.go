package memorag

import "github.com/kailas-cloud/memorag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrUnsupportedProvider    = domain.ErrUnsupportedProvider
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrVectorSearch           = domain.ErrVectorSearch
	ErrStorageUnavailable     = domain.ErrStorageUnavailable
	ErrRerankFailed           = domain.ErrRerankFailed
	ErrGenerationFailed       = domain.ErrGenerationFailed
	ErrRateLimited            = domain.ErrRateLimited
)
