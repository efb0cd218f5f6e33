package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
)

func newTestChatModel(url string) *ChatModel {
	return NewChatModel(&Config{APIKey: "test-key", BaseURL: url, Model: "gpt-test", MaxTokens: 256, Logger: zap.NewNop()})
}

func TestChatModel_Invoke(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"standalone query"}}]}`))
	}))
	defer server.Close()

	out, err := newTestChatModel(server.URL).Invoke(context.Background(), llm.Prompt{
		System:      "rewrite",
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "and the second one?"}},
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out != "standalone query" {
		t.Errorf("Invoke = %q", out)
	}
	if got.Model != "gpt-test" || got.MaxTokens != 256 {
		t.Errorf("unexpected request %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
	if got.Temperature < 0.09 || got.Temperature > 0.11 {
		t.Errorf("temperature = %v", got.Temperature)
	}
}

func TestChatModel_Stream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"Hel", "", "lo"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	ch, err := newTestChatModel(server.URL).Stream(context.Background(), llm.Prompt{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var sb strings.Builder
	var chunks int
	for c := range ch {
		if c.Err != nil {
			t.Fatalf("unexpected chunk error: %v", c.Err)
		}
		sb.WriteString(c.Content.(string))
		chunks++
	}
	if sb.String() != "Hello" {
		t.Errorf("streamed %q, want Hello", sb.String())
	}
	if chunks != 2 {
		t.Errorf("expected empty deltas to be skipped, got %d chunks", chunks)
	}
}

func TestChatModel_StreamOpenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := newTestChatModel(server.URL).Stream(context.Background(), llm.Prompt{})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}
