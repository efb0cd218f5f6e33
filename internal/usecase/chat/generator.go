package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain/chat/event"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
)

// ContextPlaceholder marks where the assembled context goes in the system prompt.
const ContextPlaceholder = "{context}"

// DefaultSystemPrompt is used when no template is configured.
const DefaultSystemPrompt = `You are an assistant that answers questions using the user's memos.
Answer only from the context below. If the context does not contain the answer, say so.
When you use a result, cite it by its number in square brackets, for example [2].

Context:
{context}`

// GeneratorConfig tunes answer generation.
type GeneratorConfig struct {
	// SystemPrompt must contain ContextPlaceholder. Empty means DefaultSystemPrompt.
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// GenerateInput is one generation request.
type GenerateInput struct {
	Query            string
	Context          string
	Results          []result.Reranked
	EnableReferences bool
	Model            StreamModel
	Provider         llm.Provider
}

// Generator streams an answer as chat events.
type Generator struct {
	cfg    GeneratorConfig
	logger *zap.Logger
}

// NewGenerator creates a generator.
func NewGenerator(cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &Generator{cfg: cfg, logger: logger}
}

// Generate opens the model stream and returns the event channel. An error is returned
// only when the stream cannot be opened. The channel carries token events in model
// order, then at most one references event, and is closed when the model finishes.
// A model failure after opening arrives as a single error event closing the channel.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (<-chan event.Event, error) {
	chunks, err := in.Model.Stream(ctx, g.prompt(in))
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	out := make(chan event.Event)
	go func() {
		defer close(out)

		for c := range chunks {
			if c.Err != nil {
				g.logger.Error("Chat stream failed",
					zap.String("provider", string(in.Provider)),
					zap.Error(c.Err),
				)
				send(ctx, out, event.Error(c.Err.Error()))
				return
			}
			text := Normalize(c.Content)
			if text == "" {
				continue
			}
			if !send(ctx, out, event.Token(text)) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		if in.EnableReferences {
			if refs := References(in.Results); refs != nil {
				send(ctx, out, event.Refs(refs))
			}
		}
	}()
	return out, nil
}

func (g *Generator) prompt(in GenerateInput) llm.Prompt {
	return llm.Prompt{
		System:      strings.ReplaceAll(g.cfg.SystemPrompt, ContextPlaceholder, in.Context),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: in.Query}},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}
}

func send(ctx context.Context, ch chan<- event.Event, e event.Event) bool {
	select {
	case ch <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// References maps 1-based result positions to their memo. Results missing the id or
// the title are skipped. Returns nil when no result qualifies.
func References(results []result.Reranked) event.References {
	var refs event.References
	for i, r := range results {
		if r.MemoUUID == "" || r.MemoTitle == "" {
			continue
		}
		if refs == nil {
			refs = make(event.References)
		}
		refs[i+1] = event.Reference{MemoUUID: r.MemoUUID, MemoTitle: r.MemoTitle}
	}
	return refs
}

// Normalize turns a provider chunk into text. Strings pass through, objects yield
// their "text" or "content" field, anything else is stringified.
func Normalize(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		if t, ok := fieldText(v); ok {
			return t
		}
		return v.String()
	case map[string]any:
		if t, ok := pick(v["text"], v["content"]); ok {
			return t
		}
	}
	if t, ok := fieldText(content); ok {
		return t
	}
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprint(content)
	}
	return string(data)
}

// fieldText reads a text or content field from an arbitrary value via its JSON form.
func fieldText(v any) (string, bool) {
	data, err := json.Marshal(v)
	if err != nil || len(data) == 0 || data[0] != '{' {
		return "", false
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", false
	}
	return pick(fields["text"], fields["content"])
}

func pick(vals ...any) (string, bool) {
	for _, v := range vals {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}
