package llm

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/memorag/internal/domain"
)

func TestParseProvider(t *testing.T) {
	for _, name := range []string{"", "openai", "anthropic", "google"} {
		p, err := ParseProvider(name)
		if err != nil {
			t.Errorf("ParseProvider(%q): unexpected error: %v", name, err)
		}
		if string(p) != name {
			t.Errorf("ParseProvider(%q) = %q", name, p)
		}
	}

	_, err := ParseProvider("mistral")
	if !errors.Is(err, domain.ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
}
