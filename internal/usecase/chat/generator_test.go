package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/chat/event"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
)

// --- Mocks ---

type mockModel struct {
	chunks  []llm.Chunk
	openErr error
	prompt  llm.Prompt
	opened  int
	// block keeps the stream open after the chunks until ctx is done.
	block bool
}

func (m *mockModel) Invoke(_ context.Context, _ llm.Prompt) (string, error) { return "", nil }

func (m *mockModel) Stream(ctx context.Context, p llm.Prompt) (<-chan llm.Chunk, error) {
	m.opened++
	m.prompt = p
	if m.openErr != nil {
		return nil, m.openErr
	}
	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for _, c := range m.chunks {
			if !llm.Send(ctx, ch, c) {
				return
			}
		}
		if m.block {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func collect(ch <-chan event.Event) []event.Event {
	var out []event.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

type textPart struct {
	Text    string `json:"text"`
	Thought bool   `json:"thought,omitempty"`
}

type contentPart struct {
	Content string `json:"content"`
}

// --- Tests ---

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "hello", "hello"},
		{"bytes", []byte("raw"), "raw"},
		{"map text", map[string]any{"text": "from text"}, "from text"},
		{"map content", map[string]any{"content": "from content"}, "from content"},
		{"map other", map[string]any{"n": 1}, `{"n":1}`},
		{"struct text", textPart{Text: "part"}, "part"},
		{"struct pointer", &textPart{Text: "ptr"}, "ptr"},
		{"struct content", contentPart{Content: "c"}, "c"},
		{"number", 42, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReferences_SkipsIncomplete(t *testing.T) {
	refs := References([]result.Reranked{
		{MemoUUID: "m1", MemoTitle: "T1"},
		{MemoTitle: "T2"},
		{MemoUUID: "m3"},
		{MemoUUID: "m4", MemoTitle: "T4"},
	})
	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d", len(refs))
	}
	if refs[1] != (event.Reference{MemoUUID: "m1", MemoTitle: "T1"}) {
		t.Errorf("unexpected ref 1: %+v", refs[1])
	}
	if _, ok := refs[2]; ok {
		t.Error("key 2 must be absent")
	}
	if refs[4].MemoUUID != "m4" {
		t.Errorf("unexpected ref 4: %+v", refs[4])
	}
}

func TestReferences_NoneQualify(t *testing.T) {
	if refs := References([]result.Reranked{{MemoTitle: "T"}}); refs != nil {
		t.Errorf("expected nil, got %v", refs)
	}
	if refs := References(nil); refs != nil {
		t.Errorf("expected nil, got %v", refs)
	}
}

func TestGenerate_TokensThenReferences(t *testing.T) {
	m := &mockModel{chunks: []llm.Chunk{
		{Content: "Hel"},
		{Content: map[string]any{"text": "lo"}},
		{Content: ""},
		{Content: &textPart{Text: "!"}},
	}}
	g := NewGenerator(GeneratorConfig{Temperature: 0.2}, zap.NewNop())

	ch, err := g.Generate(context.Background(), GenerateInput{
		Query:            "q",
		Context:          "Result 1: x\n\n",
		Results:          []result.Reranked{{MemoUUID: "m1", MemoTitle: "T1"}, {MemoTitle: "T2"}},
		EnableReferences: true,
		Model:            m,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := collect(ch)

	if len(events) != 4 {
		t.Fatalf("expected 3 tokens and 1 references event, got %d: %+v", len(events), events)
	}
	var sb strings.Builder
	for _, e := range events[:3] {
		if e.Kind != event.KindToken {
			t.Fatalf("expected token, got %s", e.Kind)
		}
		sb.WriteString(e.Content)
	}
	if sb.String() != "Hello!" {
		t.Errorf("tokens = %q", sb.String())
	}
	last := events[3]
	if last.Kind != event.KindReferences || len(last.References) != 1 || last.References[1].MemoUUID != "m1" {
		t.Errorf("unexpected references event %+v", last)
	}

	if !strings.Contains(m.prompt.System, "Result 1: x") || strings.Contains(m.prompt.System, ContextPlaceholder) {
		t.Errorf("context not substituted: %q", m.prompt.System)
	}
	if m.prompt.Messages[0].Content != "q" || m.prompt.Temperature != 0.2 {
		t.Errorf("unexpected prompt %+v", m.prompt)
	}
}

func TestGenerate_ReferencesDisabled(t *testing.T) {
	m := &mockModel{chunks: []llm.Chunk{{Content: "a"}}}
	ch, err := NewGenerator(GeneratorConfig{}, zap.NewNop()).Generate(context.Background(), GenerateInput{
		Results: []result.Reranked{{MemoUUID: "m1", MemoTitle: "T1"}},
		Model:   m,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range collect(ch) {
		if e.Kind == event.KindReferences {
			t.Error("references must not be emitted when disabled")
		}
	}
}

func TestGenerate_NoQualifyingReferences(t *testing.T) {
	m := &mockModel{chunks: []llm.Chunk{{Content: "a"}}}
	ch, _ := NewGenerator(GeneratorConfig{}, zap.NewNop()).Generate(context.Background(), GenerateInput{
		Results:          []result.Reranked{{MemoUUID: "m1"}},
		EnableReferences: true,
		Model:            m,
	})
	events := collect(ch)
	if len(events) != 1 || events[0].Kind != event.KindToken {
		t.Errorf("expected a single token, got %+v", events)
	}
}

func TestGenerate_OpenError(t *testing.T) {
	m := &mockModel{openErr: domain.ErrGenerationFailed}
	_, err := NewGenerator(GeneratorConfig{}, zap.NewNop()).Generate(context.Background(), GenerateInput{Model: m})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerate_MidStreamError(t *testing.T) {
	m := &mockModel{chunks: []llm.Chunk{
		{Content: "partial"},
		{Err: errors.New("connection reset")},
		{Content: "never"},
	}}
	ch, err := NewGenerator(GeneratorConfig{}, zap.NewNop()).Generate(context.Background(), GenerateInput{
		Results:          []result.Reranked{{MemoUUID: "m1", MemoTitle: "T1"}},
		EnableReferences: true,
		Model:            m,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := collect(ch)
	if len(events) != 2 {
		t.Fatalf("expected token and error, got %+v", events)
	}
	if events[1].Kind != event.KindError || !strings.Contains(events[1].Message, "connection reset") {
		t.Errorf("unexpected error event %+v", events[1])
	}
}

func TestGenerate_CustomPrompt(t *testing.T) {
	m := &mockModel{}
	g := NewGenerator(GeneratorConfig{SystemPrompt: "Use: {context}"}, zap.NewNop())
	ch, _ := g.Generate(context.Background(), GenerateInput{Context: "ctx", Model: m})
	collect(ch)
	if m.prompt.System != "Use: ctx" {
		t.Errorf("system = %q", m.prompt.System)
	}
}
