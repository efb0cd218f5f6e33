package conversation

import "fmt"

// HistoryWindow is the number of most recent turns considered when rewriting a query.
const HistoryWindow = 6

// Role is the author of a turn.
type Role string

// Turn roles.
const (
	User      Role = "user"
	Assistant Role = "assistant"
)

// IsValid checks if the role is one of the supported values.
func (r Role) IsValid() bool { return r == User || r == Assistant }

// Turn is one message of a prior conversation.
type Turn struct {
	role Role
	text string
}

// NewTurn validates and creates a Turn.
func NewTurn(role Role, text string) (Turn, error) {
	if !role.IsValid() {
		return Turn{}, fmt.Errorf("unsupported role %q", role)
	}
	return Turn{role: role, text: text}, nil
}

// Role returns the author.
func (t Turn) Role() Role { return t.role }

// Text returns the message text.
func (t Turn) Text() string { return t.text }

// Recent returns the last n turns, oldest first.
func Recent(turns []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
