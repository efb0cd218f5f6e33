package event

// Kind tags the variant of a chat event.
type Kind string

// Event kinds, in the order a well-formed stream may produce them.
const (
	KindToken      Kind = "token"
	KindReferences Kind = "references"
	KindError      Kind = "error"
	KindDone       Kind = "done"
)

// Reference points a citation number at a source memo.
type Reference struct {
	MemoUUID  string `json:"memo_uuid"`
	MemoTitle string `json:"memo_title"`
}

// References maps 1-based result positions to source memos. Positions whose result
// lacked an id or title are absent, so keys may be sparse.
type References map[int]Reference

// Event is one element of a chat response stream.
type Event struct {
	Kind       Kind
	Content    string
	References References
	Message    string
	ChatID     string
}

// Token creates a token event.
func Token(content string) Event { return Event{Kind: KindToken, Content: content} }

// Refs creates a references event.
func Refs(refs References) Event { return Event{Kind: KindReferences, References: refs} }

// Error creates an error event.
func Error(message string) Event { return Event{Kind: KindError, Message: message} }

// Done creates the terminal event.
func Done(chatID string) Event { return Event{Kind: KindDone, ChatID: chatID} }

// Payload returns the JSON-serializable body of the event.
func (e Event) Payload() any {
	switch e.Kind {
	case KindToken:
		return map[string]string{"content": e.Content}
	case KindReferences:
		return map[string]References{"references": e.References}
	case KindError:
		return map[string]string{"message": e.Message}
	case KindDone:
		return map[string]string{"chat_id": e.ChatID}
	}
	return nil
}
