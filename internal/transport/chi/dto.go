package chi

import (
	"encoding/json"
	"time"

	"github.com/kailas-cloud/memorag/internal/domain/chat/event"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest          = "bad_request"
	codeValidationFailed    = "validation_failed"
	codeUnauthorized        = "unauthorized"
	codeNotFound            = "not_found"
	codePlanLimitExceeded   = "plan_limit_exceeded"
	codeUnsupportedProvider = "unsupported_provider"
	codeRateLimited         = "rate_limited"
	codeServiceUnavailable  = "service_unavailable"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type searchRequest struct {
	Query   string          `json:"query"`
	Limit   *int            `json:"limit,omitempty"`
	Filters json.RawMessage `json:"filters,omitempty"`
}

type searchResultItem struct {
	ChunkUUID      string  `json:"chunk_uuid"`
	MemoUUID       string  `json:"memo_uuid"`
	MemoTitle      string  `json:"memo_title"`
	MemoSummary    string  `json:"memo_summary"`
	ChunkContent   string  `json:"chunk_content"`
	ContentSnippet string  `json:"content_snippet"`
	Distance       float64 `json:"distance"`
}

type searchResponse struct {
	Results []searchResultItem `json:"results"`
}

type historyTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type chatRequest struct {
	Query            string          `json:"query"`
	Filters          json.RawMessage `json:"filters,omitempty"`
	Stream           bool            `json:"stream"`
	ChatID           string          `json:"chat_id,omitempty"`
	EnableReferences bool            `json:"enable_references"`
	LLMProvider      string          `json:"llm_provider,omitempty"`
	History          []historyTurn   `json:"history,omitempty"`
}

type chatResponse struct {
	OK                bool             `json:"ok"`
	ChatID            string           `json:"chat_id"`
	Response          string           `json:"response"`
	IntermediateSteps []any            `json:"intermediate_steps"`
	References        event.References `json:"references,omitempty"`
}

type usageMeter struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
	Exhausted bool  `json:"is_exhausted"`
}

type usageResponse struct {
	Plan          string                `json:"plan"`
	PeriodStartAt time.Time             `json:"period_start_at"`
	PeriodEndAt   time.Time             `json:"period_end_at"`
	Usage         map[string]usageMeter `json:"usage"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
