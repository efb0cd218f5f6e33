package llm

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/memorag/internal/domain"
)

// Provider names a chat-completion backend.
type Provider string

// Supported providers.
const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Google    Provider = "google"
)

// IsValid checks if the provider is one of the supported values.
func (p Provider) IsValid() bool {
	return p == OpenAI || p == Anthropic || p == Google
}

// ParseProvider resolves a provider name. An empty name yields the empty Provider,
// meaning "use the configured default".
func ParseProvider(name string) (Provider, error) {
	p := Provider(name)
	if p == "" || p.IsValid() {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, name)
}

// Role of a prompt message.
type Role string

// Prompt message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prompt message.
type Message struct {
	Role    Role
	Content string
}

// Prompt is a provider-neutral completion request.
type Prompt struct {
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Chunk is one piece of streamed model output. Content holds whatever shape the
// provider produced; consumers normalize it to text.
type Chunk struct {
	Content any
	Err     error
}

// Send delivers c on ch unless ctx is cancelled first. It reports whether c was delivered.
func Send(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
