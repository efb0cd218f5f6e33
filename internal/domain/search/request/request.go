package request

import (
	"strings"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/conversation"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	"github.com/kailas-cloud/memorag/internal/domain/search/filter"
)

// Request limits.
const (
	// MaxQueryLength is the maximum allowed query length in bytes.
	MaxQueryLength = 4096
	DefaultLimit   = 10
	MaxLimit       = 50
	MaxChatIDLen   = 128
	MaxHistory     = 100
)

// Search is a validated interactive search request.
type Search struct {
	query   string
	limit   int
	filters []filter.Filter
}

// NewSearch validates search parameters. A nil limit means the default.
func NewSearch(query string, limit *int, filters []filter.Filter) (Search, error) {
	if err := validateQuery(query); err != nil {
		return Search{}, err
	}
	l := DefaultLimit
	if limit != nil {
		l = *limit
	}
	if l > MaxLimit {
		return Search{}, domain.NewValidationError("Limit must be less than or equal to %d", MaxLimit)
	}
	if l < 1 {
		return Search{}, domain.NewValidationError("Limit must be greater than or equal to 1")
	}
	return Search{query: query, limit: l, filters: filters}, nil
}

// Query returns the search text.
func (s Search) Query() string { return s.query }

// Limit returns the maximum number of results.
func (s Search) Limit() int { return s.limit }

// Filters returns the validated filters.
func (s Search) Filters() []filter.Filter { return s.filters }

// Chat is a validated chat request.
type Chat struct {
	query            string
	filters          []filter.Filter
	stream           bool
	chatID           string
	enableReferences bool
	provider         llm.Provider
	history          []conversation.Turn
}

// ChatParams carries the raw chat request fields.
type ChatParams struct {
	Query            string
	Filters          []filter.Filter
	Stream           bool
	ChatID           string
	EnableReferences bool
	Provider         string
	History          []conversation.Turn
}

// NewChat validates chat parameters.
func NewChat(p ChatParams) (Chat, error) {
	if err := validateQuery(p.Query); err != nil {
		return Chat{}, err
	}
	if len(p.ChatID) > MaxChatIDLen {
		return Chat{}, domain.NewValidationError("chat_id too long (max %d chars)", MaxChatIDLen)
	}
	if len(p.History) > MaxHistory {
		return Chat{}, domain.NewValidationError("history too long (max %d turns)", MaxHistory)
	}
	provider, err := llm.ParseProvider(p.Provider)
	if err != nil {
		return Chat{}, err
	}
	return Chat{
		query:            p.Query,
		filters:          p.Filters,
		stream:           p.Stream,
		chatID:           p.ChatID,
		enableReferences: p.EnableReferences,
		provider:         provider,
		history:          p.History,
	}, nil
}

// Query returns the user question.
func (c Chat) Query() string { return c.query }

// Filters returns the validated filters.
func (c Chat) Filters() []filter.Filter { return c.filters }

// Stream reports whether the answer should be streamed.
func (c Chat) Stream() bool { return c.stream }

// ChatID returns the caller-supplied conversation id, possibly empty.
func (c Chat) ChatID() string { return c.chatID }

// EnableReferences reports whether a references event was requested.
func (c Chat) EnableReferences() bool { return c.enableReferences }

// Provider returns the requested provider; empty means the configured default.
func (c Chat) Provider() llm.Provider { return c.provider }

// History returns the prior conversation turns.
func (c Chat) History() []conversation.Turn { return c.history }

// WithChatID returns a copy of c with the given conversation id.
func (c Chat) WithChatID(id string) Chat {
	c.chatID = id
	return c
}

func validateQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return domain.NewValidationError("Query is required")
	}
	if len(q) > MaxQueryLength {
		return domain.NewValidationError("Query too long (max %d chars)", MaxQueryLength)
	}
	return nil
}
