package memorag

import "time"

// Scope identifies the tenant whose memos are searched.
type Scope struct {
	OrgID     string
	ProjectID string
}

// Provider names a chat-completion backend.
type Provider string

// Provider constants.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// FilterOperator compares a memo field with a value.
type FilterOperator string

// FilterOperator constants.
const (
	OpEq         FilterOperator = "eq"
	OpNeq        FilterOperator = "neq"
	OpContains   FilterOperator = "contains"
	OpStartsWith FilterOperator = "startswith"
	OpEndsWith   FilterOperator = "endswith"
	OpIn         FilterOperator = "in"
	OpNotIn      FilterOperator = "not_in"
)

// FilterType is how the field value is interpreted.
type FilterType string

// FilterType constants.
const (
	TypeString  FilterType = "string"
	TypeNumber  FilterType = "number"
	TypeBoolean FilterType = "boolean"
	TypeDate    FilterType = "date"
)

// Filter restricts candidate chunks by a memo field. Value is a slice for OpIn and OpNotIn.
type Filter struct {
	Field    string
	Operator FilterOperator
	Type     FilterType
	Value    any
}

// Turn is one prior message of a conversation.
type Turn struct {
	Role string // "user" or "assistant"
	Text string
}

// SearchResult is a single matching chunk with its memo metadata.
type SearchResult struct {
	ChunkUUID   string
	MemoUUID    string
	MemoTitle   string
	MemoSummary string
	Content     string
	Snippet     string
	Distance    float64
}

// ChatRequest is a question over the tenant's memos.
type ChatRequest struct {
	Query            string
	ChatID           string // generated when empty
	Provider         Provider
	History          []Turn
	Filters          []Filter
	EnableReferences bool
}

// Reference points a citation number at a source memo.
type Reference struct {
	MemoUUID  string
	MemoTitle string
}

// Answer is a complete chat response. References keys are 1-based context positions.
type Answer struct {
	ChatID     string
	Response   string
	References map[int]Reference
}

// EventKind tags a streamed chat event.
type EventKind string

// EventKind constants.
const (
	EventToken      EventKind = "token"
	EventReferences EventKind = "references"
	EventDone       EventKind = "done"
)

// Event is one element of a streamed answer.
type Event struct {
	Kind       EventKind
	Content    string
	References map[int]Reference
	ChatID     string
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status    string            // "ok", "degraded", "error"
	Checks    map[string]string // component → "ok"/"error"
	CheckedAt time.Time
}
