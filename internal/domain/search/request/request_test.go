package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
)

func intPtr(i int) *int { return &i }

func TestNewSearch_Defaults(t *testing.T) {
	s, err := NewSearch("hello", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Query() != "hello" {
		t.Errorf("Query() = %q", s.Query())
	}
	if s.Limit() != DefaultLimit {
		t.Errorf("Limit() = %d, want %d", s.Limit(), DefaultLimit)
	}
}

func TestNewSearch_Limits(t *testing.T) {
	tests := []struct {
		name    string
		limit   *int
		wantErr string
	}{
		{"max allowed", intPtr(50), ""},
		{"one", intPtr(1), ""},
		{"over max", intPtr(51), "Limit must be less than or equal to 50"},
		{"zero", intPtr(0), "Limit must be greater than or equal to 1"},
		{"negative", intPtr(-3), "Limit must be greater than or equal to 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSearch("q", tt.limit, nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Error("expected ErrInvalidRequest")
			}
		})
	}
}

func TestNewSearch_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   \n"} {
		_, err := NewSearch(q, nil, nil)
		if err == nil || err.Error() != "Query is required" {
			t.Errorf("NewSearch(%q): error = %v", q, err)
		}
	}
}

func TestNewSearch_QueryTooLong(t *testing.T) {
	_, err := NewSearch(strings.Repeat("a", MaxQueryLength+1), nil, nil)
	if err == nil || !strings.Contains(err.Error(), "too long") {
		t.Errorf("expected too long error, got %v", err)
	}
}

func TestNewChat(t *testing.T) {
	c, err := NewChat(ChatParams{Query: "what changed?", Stream: true, Provider: "anthropic", EnableReferences: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Stream() || !c.EnableReferences() || c.Provider() != llm.Anthropic {
		t.Errorf("unexpected chat request: %+v", c)
	}
	if c.WithChatID("c-1").ChatID() != "c-1" {
		t.Error("WithChatID did not set id")
	}
	if c.ChatID() != "" {
		t.Error("WithChatID mutated the receiver")
	}
}

func TestNewChat_Invalid(t *testing.T) {
	if _, err := NewChat(ChatParams{}); err == nil || err.Error() != "Query is required" {
		t.Errorf("expected Query is required, got %v", err)
	}
	_, err := NewChat(ChatParams{Query: "q", Provider: "cohere"})
	if !errors.Is(err, domain.ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
}
