package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	"github.com/kailas-cloud/memorag/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

func newTestModel(t *testing.T, url string) *ChatModel {
	t.Helper()
	m, err := NewChatModel(&Config{APIKey: "test-key", BaseURL: url, Model: "claude-test", Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("NewChatModel: %v", err)
	}
	return m
}

func TestNewChatModel_RequiresKey(t *testing.T) {
	if _, err := NewChatModel(&Config{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestChatModel_Stream(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/messages") {
			t.Errorf("expected /messages path, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("unexpected x-api-key %q", r.Header.Get("x-api-key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		events := []string{
			`event: message_start`,
			`data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-test"}}`,
			``,
			`event: content_block_start`,
			`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
			``,
			`event: content_block_delta`,
			`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
			``,
			`event: content_block_delta`,
			`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}`,
			``,
			`event: content_block_stop`,
			`data: {"type":"content_block_stop","index":0}`,
			``,
			`event: message_stop`,
			`data: {"type":"message_stop"}`,
			``,
		}
		for _, e := range events {
			fmt.Fprintln(w, e)
		}
	}))
	defer server.Close()

	ch, err := newTestModel(t, server.URL).Stream(context.Background(), llm.Prompt{
		System:   "answer from context",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var sb strings.Builder
	for c := range ch {
		if c.Err != nil {
			t.Fatalf("unexpected chunk error: %v", c.Err)
		}
		sb.WriteString(c.Content.(string))
	}
	if sb.String() != "Hello world" {
		t.Errorf("streamed %q", sb.String())
	}
	if body["model"] != "claude-test" {
		t.Errorf("model = %v", body["model"])
	}
	if _, ok := body["system"]; !ok {
		t.Error("expected system prompt in request")
	}
}

func TestChatModel_StreamOpenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	_, err := newTestModel(t, server.URL).Stream(context.Background(), llm.Prompt{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestChatModel_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",` +
			`"content":[{"type":"text","text":"rewritten query"}],"stop_reason":"end_turn",` +
			`"usage":{"input_tokens":5,"output_tokens":2}}`))
	}))
	defer server.Close()

	out, err := newTestModel(t, server.URL).Invoke(context.Background(), llm.Prompt{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out != "rewritten query" {
		t.Errorf("Invoke = %q", out)
	}
}
