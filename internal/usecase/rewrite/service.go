package rewrite

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/conversation"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	"github.com/kailas-cloud/memorag/internal/metrics"
)

const systemPrompt = `You turn the latest user question into a standalone search query for a knowledge base.
Resolve pronouns and references using the conversation. Keep the user's language.
Reply with the query only, without quotes or explanations.`

// Config controls query rewriting.
type Config struct {
	Enabled     bool
	Temperature float32
	MaxTokens   int
}

// Service rewrites follow-up questions into standalone queries. Rewriting is best
// effort: any failure yields the original query.
type Service struct {
	model    Invoker
	projects ProjectSettings
	cfg      Config
	logger   *zap.Logger
}

// New creates a rewrite service. projects can be nil, meaning only the global switch applies.
func New(model Invoker, projects ProjectSettings, cfg Config, logger *zap.Logger) *Service {
	return &Service{model: model, projects: projects, cfg: cfg, logger: logger}
}

// Rewrite returns the query to search with.
func (s *Service) Rewrite(ctx context.Context, scope domain.Scope, query string, history []conversation.Turn) string {
	if !s.enabled(ctx, scope) {
		metrics.QueryRewritesTotal.WithLabelValues("skipped").Inc()
		return query
	}

	out, err := s.model.Invoke(ctx, s.prompt(query, history))
	if err != nil {
		s.logger.Warn("Query rewrite failed, using original query",
			zap.String("org_id", scope.OrgID),
			zap.String("project_id", scope.ProjectID),
			zap.Error(err),
		)
		metrics.QueryRewritesTotal.WithLabelValues("fallback").Inc()
		return query
	}

	rewritten := strings.TrimSpace(out)
	if rewritten == "" {
		metrics.QueryRewritesTotal.WithLabelValues("fallback").Inc()
		return query
	}

	s.logger.Debug("Query rewritten",
		zap.String("original", query),
		zap.String("rewritten", rewritten),
	)
	metrics.QueryRewritesTotal.WithLabelValues("rewritten").Inc()
	return rewritten
}

func (s *Service) enabled(ctx context.Context, scope domain.Scope) bool {
	if !s.cfg.Enabled || s.model == nil {
		return false
	}
	if s.projects == nil {
		return true
	}
	on, err := s.projects.RewriteEnabled(ctx, scope)
	if err != nil {
		s.logger.Warn("Project rewrite setting unavailable, rewriting disabled",
			zap.String("project_id", scope.ProjectID),
			zap.Error(err),
		)
		return false
	}
	return on
}

func (s *Service) prompt(query string, history []conversation.Turn) llm.Prompt {
	var sb strings.Builder
	if recent := conversation.Recent(history, conversation.HistoryWindow); len(recent) > 0 {
		sb.WriteString("Conversation:\n")
		for _, t := range recent {
			sb.WriteString(string(t.Role()))
			sb.WriteString(": ")
			sb.WriteString(t.Text())
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)

	return llm.Prompt{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}
}
