package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/chat/event"
	"github.com/kailas-cloud/memorag/internal/domain/search/request"
	"github.com/kailas-cloud/memorag/internal/repository/exchange"
	"github.com/kailas-cloud/memorag/internal/usecase/retrieval"
)

const saveTimeout = 5 * time.Second

// Answer is a buffered chat response.
type Answer struct {
	ChatID     string
	Response   string
	References event.References
}

// Service answers chat questions over the tenant's memos.
type Service struct {
	assembler Assembler
	models    Models
	gen       *Generator
	exchanges ExchangeStore
	topN      int
	logger    *zap.Logger
	newID     func() string
}

// New creates a chat service. exchanges can be nil, which disables persistence.
func New(
	assembler Assembler, models Models, gen *Generator, exchanges ExchangeStore,
	topN int, logger *zap.Logger,
) *Service {
	return &Service{
		assembler: assembler,
		models:    models,
		gen:       gen,
		exchanges: exchanges,
		topN:      topN,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Stream assembles context and opens the answer stream. Every failure up to and
// including opening the model stream is returned as an error; later failures arrive
// as an error event on the session.
func (s *Service) Stream(ctx context.Context, scope domain.Scope, req request.Chat) (*Session, error) {
	model, provider, err := s.models.Get(req.Provider())
	if err != nil {
		return nil, err
	}

	if req.ChatID() == "" {
		req = req.WithChatID(s.newID())
	}

	rc, err := s.assembler.Assemble(ctx, scope, retrieval.Input{
		Query:   req.Query(),
		Filters: req.Filters(),
		History: req.History(),
		TopN:    s.topN,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}

	events, err := s.gen.Generate(ctx, GenerateInput{
		Query:            rc.EffectiveQuery,
		Context:          rc.Text(),
		Results:          rc.Results,
		EnableReferences: req.EnableReferences(),
		Model:            model,
		Provider:         provider,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	sess := &Session{
		chatID: req.ChatID(),
		in:     events,
		out:    make(chan event.Event),
		done:   make(chan struct{}),
	}
	go sess.run(ctx, func(ctx context.Context, response string) {
		s.save(ctx, scope, exchange.Exchange{
			ChatID:         req.ChatID(),
			Query:          req.Query(),
			EffectiveQuery: rc.EffectiveQuery,
			Response:       response,
			Provider:       string(provider),
		})
	})
	return sess, nil
}

// Answer runs the pipeline and buffers the whole response.
func (s *Service) Answer(ctx context.Context, scope domain.Scope, req request.Chat) (Answer, error) {
	sess, err := s.Stream(ctx, scope, req)
	if err != nil {
		return Answer{}, err
	}

	var sb strings.Builder
	var refs event.References
	var streamErr error
	for e := range sess.Events() {
		switch e.Kind {
		case event.KindToken:
			sb.WriteString(e.Content)
		case event.KindReferences:
			refs = e.References
		case event.KindError:
			streamErr = fmt.Errorf("%w: %s", domain.ErrGenerationFailed, e.Message)
		}
	}
	if streamErr != nil {
		return Answer{}, streamErr
	}
	if _, ok := sess.Finish(); !ok {
		if err := ctx.Err(); err != nil {
			return Answer{}, err
		}
		return Answer{}, fmt.Errorf("%w: stream interrupted", domain.ErrGenerationFailed)
	}
	return Answer{ChatID: sess.ChatID(), Response: sb.String(), References: refs}, nil
}

func (s *Service) save(ctx context.Context, scope domain.Scope, ex exchange.Exchange) {
	if s.exchanges == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := s.exchanges.Save(ctx, scope, ex); err != nil {
		s.logger.Error("Failed to save chat exchange",
			zap.String("chat_id", ex.ChatID),
			zap.String("org_id", scope.OrgID),
			zap.Error(err),
		)
	}
}

// Session is one streamed answer. Callers drain Events and then call Finish, which
// yields the done event only when the answer completed.
type Session struct {
	chatID string
	in     <-chan event.Event
	out    chan event.Event
	done   chan struct{}
	ok     bool
}

// ChatID returns the conversation id, generated when the request had none.
func (s *Session) ChatID() string { return s.chatID }

// Events returns the token, references and error events in order.
func (s *Session) Events() <-chan event.Event { return s.out }

// Finish waits until the exchange is persisted and returns the done event. The second
// result is false when the stream failed or was cancelled; no done event may be sent then.
func (s *Session) Finish() (event.Event, bool) {
	<-s.done
	if !s.ok {
		return event.Event{}, false
	}
	return event.Done(s.chatID), true
}

func (s *Session) run(ctx context.Context, persist func(context.Context, string)) {
	defer close(s.done)

	var sb strings.Builder
	failed := false
	for e := range s.in {
		switch e.Kind {
		case event.KindToken:
			sb.WriteString(e.Content)
		case event.KindError:
			failed = true
		}
		if !send(ctx, s.out, e) {
			failed = true
			break
		}
	}
	close(s.out)

	if failed || ctx.Err() != nil {
		// drain so the generator goroutine can exit
		for range s.in {
		}
		return
	}
	persist(ctx, sb.String())
	s.ok = true
}
