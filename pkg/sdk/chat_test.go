package memorag

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain/llm"
	chatuc "github.com/kailas-cloud/memorag/internal/usecase/chat"
	llmuc "github.com/kailas-cloud/memorag/internal/usecase/llm"
)

type chatFixture struct {
	asm       *mockAssembler
	model     *mockModel
	exchanges *mockExchanges
}

func newChatFixture() *chatFixture {
	return &chatFixture{
		asm:       &mockAssembler{},
		model:     &mockModel{chunks: []llm.Chunk{{Content: "Hel"}, {Content: "lo"}}},
		exchanges: &mockExchanges{},
	}
}

func (f *chatFixture) client(t *testing.T) *Client {
	t.Helper()
	models, err := llmuc.NewRegistry(map[llm.Provider]llmuc.ChatModel{llm.OpenAI: f.model}, llm.OpenAI)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc := chatuc.New(f.asm, models, chatuc.NewGenerator(chatuc.GeneratorConfig{}, zap.NewNop()),
		f.exchanges, 10, zap.NewNop())
	return &Client{chatSvc: svc}
}

var tenant = Scope{OrgID: "org", ProjectID: "proj"}

func TestAsk(t *testing.T) {
	f := newChatFixture()
	c := f.client(t)

	a, err := c.Ask(context.Background(), tenant, ChatRequest{
		Query:            "what is alpha?",
		ChatID:           "chat-1",
		EnableReferences: true,
		History:          []Turn{{Role: "user", Text: "hi"}, {Role: "assistant", Text: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Response != "Hello" || a.ChatID != "chat-1" {
		t.Errorf("answer = %+v", a)
	}
	if len(a.References) != 1 || a.References[1].MemoUUID != "m1" {
		t.Errorf("references = %+v, want only position 1", a.References)
	}
	if len(f.asm.in.History) != 2 {
		t.Errorf("history = %d turns, want 2", len(f.asm.in.History))
	}
	if f.exchanges.count() != 1 {
		t.Errorf("saved = %d, want 1", f.exchanges.count())
	}
}

func TestAsk_Validation(t *testing.T) {
	c := newChatFixture().client(t)

	tests := []struct {
		name string
		req  ChatRequest
		want error
	}{
		{"empty query", ChatRequest{}, ErrInvalidRequest},
		{"bad role", ChatRequest{Query: "q", History: []Turn{{Role: "system", Text: "x"}}}, ErrInvalidRequest},
		{"unknown provider", ChatRequest{Query: "q", Provider: "mistral"}, ErrUnsupportedProvider},
		{"unconfigured provider", ChatRequest{Query: "q", Provider: ProviderGoogle}, ErrUnsupportedProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Ask(context.Background(), tenant, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAsk_MidStreamFailure(t *testing.T) {
	f := newChatFixture()
	f.model.chunks = []llm.Chunk{{Content: "par"}, {Err: errors.New("connection reset")}}
	c := f.client(t)

	_, err := c.Ask(context.Background(), tenant, ChatRequest{Query: "q"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	if f.exchanges.count() != 0 {
		t.Error("failed exchange must not be saved")
	}
}

func TestStream(t *testing.T) {
	f := newChatFixture()
	c := f.client(t)

	var kinds []EventKind
	var text string
	for e, err := range c.Stream(context.Background(), tenant, ChatRequest{Query: "q", EnableReferences: true}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		kinds = append(kinds, e.Kind)
		switch e.Kind {
		case EventToken:
			text += e.Content
		case EventDone:
			if e.ChatID == "" {
				t.Error("done event without chat id")
			}
		}
	}

	want := []EventKind{EventToken, EventToken, EventReferences, EventDone}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
	if text != "Hello" {
		t.Errorf("text = %q, want Hello", text)
	}
}

func TestStream_ErrorEvent(t *testing.T) {
	f := newChatFixture()
	f.model.chunks = []llm.Chunk{{Content: "par"}, {Err: errors.New("connection reset")}}
	c := f.client(t)

	var gotErr error
	tokens := 0
	for e, err := range c.Stream(context.Background(), tenant, ChatRequest{Query: "q"}) {
		if err != nil {
			gotErr = err
			continue
		}
		if e.Kind == EventDone {
			t.Fatal("done must not follow a failed stream")
		}
		tokens++
	}
	if !errors.Is(gotErr, ErrGenerationFailed) {
		t.Errorf("err = %v, want ErrGenerationFailed", gotErr)
	}
	if tokens != 1 {
		t.Errorf("tokens = %d, want 1", tokens)
	}
}

func TestStream_OpenFailure(t *testing.T) {
	f := newChatFixture()
	f.asm.err = ErrVectorSearch
	c := f.client(t)

	n := 0
	for _, err := range c.Stream(context.Background(), tenant, ChatRequest{Query: "q"}) {
		n++
		if !errors.Is(err, ErrVectorSearch) {
			t.Errorf("err = %v, want ErrVectorSearch", err)
		}
	}
	if n != 1 {
		t.Errorf("yielded %d values, want 1", n)
	}
}

func TestStream_EarlyBreak(t *testing.T) {
	f := newChatFixture()
	f.model.chunks = []llm.Chunk{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	c := f.client(t)

	for e, err := range c.Stream(context.Background(), tenant, ChatRequest{Query: "q"}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if e.Kind == EventToken {
			break
		}
	}
	if f.exchanges.count() != 0 {
		t.Error("abandoned exchange must not be saved")
	}
}
