package chi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/chat/event"
	"github.com/kailas-cloud/memorag/internal/domain/conversation"
	"github.com/kailas-cloud/memorag/internal/domain/search/filter"
	"github.com/kailas-cloud/memorag/internal/domain/search/request"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
	domusage "github.com/kailas-cloud/memorag/internal/domain/usage"
	logpkg "github.com/kailas-cloud/memorag/internal/logger"
	healthuc "github.com/kailas-cloud/memorag/internal/usecase/health"
)

// maxBodyBytes caps request bodies; queries and history are bounded well below this.
const maxBodyBytes = 1 << 20

// streamErrorMessage replaces provider error details in production streams.
const streamErrorMessage = "An error occurred while generating the response"

// Options tune handler behavior.
type Options struct {
	// DetailedErrors exposes upstream error text in stream error events.
	DetailedErrors bool
}

// Server serves the search, chat and usage API.
type Server struct {
	search        SearchService
	chat          ChatService
	usage         UsageGate
	health        HealthChecker
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search SearchService,
	chat ChatService,
	usage UsageGate,
	health HealthChecker,
	opts Options,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:        search,
		chat:          chat,
		usage:         usage,
		health:        health,
		opts:          opts,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrUnauthorized(w, r)
	if !ok {
		return
	}

	var body searchRequest
	if !decodeBody(w, r, &body) {
		return
	}
	filters, err := filter.Parse(body.Filters)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	req, err := request.NewSearch(body.Query, body.Limit, filters)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if err := s.usage.Check(r.Context(), scope, domusage.KindSearch); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.search.Search(ctx, scope, req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.usage.Record(scope, domusage.KindSearch, 1)

	items := make([]searchResultItem, len(results))
	for i, res := range results {
		items[i] = searchItem(res)
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, searchResponse{Results: items})
}

// Chat handles POST /api/v1/chat, answering as JSON or as an event stream.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrUnauthorized(w, r)
	if !ok {
		return
	}

	var body chatRequest
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := chatFromBody(body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if err := s.usage.Check(r.Context(), scope, domusage.KindChat); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	if req.Stream() {
		s.streamChat(w, r.WithContext(ctx), scope, req, usage)
		return
	}

	answer, err := s.chat.Answer(ctx, scope, req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.usage.Record(scope, domusage.KindChat, 1)

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, chatResponse{
		OK:                true,
		ChatID:            answer.ChatID,
		Response:          answer.Response,
		IntermediateSteps: []any{},
		References:        answer.References,
	})
}

func (s *Server) streamChat(
	w http.ResponseWriter, r *http.Request, scope domain.Scope, req request.Chat, usage *domain.EmbeddingUsage,
) {
	log := logpkg.FromContext(r.Context())

	// Retrieval and model open happen before any byte is written, so failures still get a status code.
	sess, err := s.chat.Stream(r.Context(), scope, req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.usage.Record(scope, domusage.KindChat, 1)

	setEmbeddingHeaders(w, usage)
	w.Header().Set("X-Chat-ID", sess.ChatID())
	sse, err := newSSEWriter(w)
	if err != nil {
		log.Warn("open event stream", zap.Error(err))
		drain(sess.Events())
		return
	}

	for e := range sess.Events() {
		if e.Kind == event.KindError {
			log.Warn("chat stream error", zap.String("chat_id", sess.ChatID()), zap.String("message", e.Message))
			if !s.opts.DetailedErrors {
				e = event.Error(streamErrorMessage)
			}
		}
		if err := sse.send(e); err != nil {
			log.Info("client went away", zap.String("chat_id", sess.ChatID()), zap.Error(err))
			drain(sess.Events())
			return
		}
	}

	done, ok := sess.Finish()
	if !ok {
		return
	}
	if err := sse.send(done); err != nil {
		log.Info("client went away before done", zap.String("chat_id", sess.ChatID()), zap.Error(err))
	}
}

// Usage handles GET /api/v1/usage.
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrUnauthorized(w, r)
	if !ok {
		return
	}
	report, err := s.usage.Report(r.Context(), scope)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	meters := make(map[string]usageMeter, len(report.Meters()))
	for _, m := range report.Meters() {
		meters[string(m.Kind())] = usageMeter{
			Used:      m.Used(),
			Limit:     m.Limit(),
			Remaining: m.Remaining(),
			Exhausted: m.IsExhausted(),
		}
	}
	writeJSON(w, http.StatusOK, usageResponse{
		Plan:          report.Plan(),
		PeriodStartAt: report.PeriodStart(),
		PeriodEndAt:   report.PeriodEnd(),
		Usage:         meters,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func chatFromBody(body chatRequest) (request.Chat, error) {
	filters, err := filter.Parse(body.Filters)
	if err != nil {
		return request.Chat{}, err
	}
	history := make([]conversation.Turn, 0, len(body.History))
	for i, h := range body.History {
		turn, err := conversation.NewTurn(conversation.Role(h.Role), h.Text)
		if err != nil {
			return request.Chat{}, domain.NewValidationError("history[%d]: %v", i, err)
		}
		history = append(history, turn)
	}
	return request.NewChat(request.ChatParams{
		Query:            body.Query,
		Filters:          filters,
		Stream:           body.Stream,
		ChatID:           body.ChatID,
		EnableReferences: body.EnableReferences,
		Provider:         body.LLMProvider,
		History:          history,
	})
}

func searchItem(r result.Enriched) searchResultItem {
	return searchResultItem{
		ChunkUUID:      r.ChunkUUID,
		MemoUUID:       r.MemoUUID,
		MemoTitle:      r.MemoTitle,
		MemoSummary:    r.MemoSummary,
		ChunkContent:   r.Content,
		ContentSnippet: r.Snippet(),
		Distance:       r.Distance,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func scopeOrUnauthorized(w http.ResponseWriter, r *http.Request) (domain.Scope, bool) {
	scope, ok := domain.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing tenant scope")
		return domain.Scope{}, false
	}
	return scope, true
}

func drain(events <-chan event.Event) {
	for range events {
	}
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if n, used := usage.Tokens(); used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(n))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
