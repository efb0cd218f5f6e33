package memorag

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/chat/event"
	"github.com/kailas-cloud/memorag/internal/domain/conversation"
	"github.com/kailas-cloud/memorag/internal/domain/search/request"
)

// Ask answers a question and returns the whole response.
func (c *Client) Ask(ctx context.Context, scope Scope, req ChatRequest) (_ Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", scope, start, err) }()

	r, err := toChatRequest(req, false)
	if err != nil {
		return Answer{}, err
	}
	a, err := c.chatSvc.Answer(ctx, toDomainScope(scope), r)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return Answer{ChatID: a.ChatID, Response: a.Response, References: fromReferences(a.References)}, nil
}

// Stream answers a question token by token. The sequence ends with an EventDone event
// once the exchange is stored, or with a non-nil error. Breaking out of the loop
// cancels generation.
func (c *Client) Stream(ctx context.Context, scope Scope, req ChatRequest) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		start := time.Now()
		var err error
		defer func() { c.obs.observe("stream", scope, start, err) }()

		r, err := toChatRequest(req, true)
		if err != nil {
			yield(Event{}, err)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		sess, err := c.chatSvc.Stream(ctx, toDomainScope(scope), r)
		if err != nil {
			err = fmt.Errorf("stream: %w", err)
			yield(Event{}, err)
			return
		}

		for e := range sess.Events() {
			switch e.Kind {
			case event.KindError:
				err = fmt.Errorf("%w: %s", domain.ErrGenerationFailed, e.Message)
				drainEvents(sess.Events())
				yield(Event{}, err)
				return
			case event.KindToken:
				c.obs.token(req.Provider)
			}
			if !yield(fromEvent(e), nil) {
				cancel()
				drainEvents(sess.Events())
				err = context.Canceled
				return
			}
		}

		done, ok := sess.Finish()
		if !ok {
			err = ctx.Err()
			if err == nil {
				err = errors.New("stream interrupted")
			}
			yield(Event{}, err)
			return
		}
		yield(fromEvent(done), nil)
	}
}

func drainEvents(events <-chan event.Event) {
	for range events {
	}
}

func toChatRequest(req ChatRequest, stream bool) (request.Chat, error) {
	filters, err := toDomainFilters(req.Filters)
	if err != nil {
		return request.Chat{}, err
	}
	history := make([]conversation.Turn, 0, len(req.History))
	for i, t := range req.History {
		turn, err := conversation.NewTurn(conversation.Role(t.Role), t.Text)
		if err != nil {
			return request.Chat{}, domain.NewValidationError("history[%d]: %v", i, err)
		}
		history = append(history, turn)
	}
	return request.NewChat(request.ChatParams{
		Query:            req.Query,
		Filters:          filters,
		Stream:           stream,
		ChatID:           req.ChatID,
		EnableReferences: req.EnableReferences,
		Provider:         string(req.Provider),
		History:          history,
	})
}

func fromEvent(e event.Event) Event {
	return Event{
		Kind:       EventKind(e.Kind),
		Content:    e.Content,
		References: fromReferences(e.References),
		ChatID:     e.ChatID,
	}
}

func fromReferences(refs event.References) map[int]Reference {
	if refs == nil {
		return nil
	}
	out := make(map[int]Reference, len(refs))
	for k, r := range refs {
		out[k] = Reference{MemoUUID: r.MemoUUID, MemoTitle: r.MemoTitle}
	}
	return out
}
