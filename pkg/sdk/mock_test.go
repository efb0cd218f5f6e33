package memorag

import (
	"context"
	"sync"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	"github.com/kailas-cloud/memorag/internal/domain/search/request"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
	"github.com/kailas-cloud/memorag/internal/repository/exchange"
	healthuc "github.com/kailas-cloud/memorag/internal/usecase/health"
	"github.com/kailas-cloud/memorag/internal/usecase/retrieval"
)

// --- embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

// --- searchUseCase mock ---

type mockSearchUC struct {
	fn func(ctx context.Context, scope domain.Scope, req request.Search) ([]result.Enriched, error)
}

func (m *mockSearchUC) Search(ctx context.Context, scope domain.Scope, req request.Search) ([]result.Enriched, error) {
	return m.fn(ctx, scope, req)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- chat collaborators ---

type mockAssembler struct {
	err error
	in  retrieval.Input
}

func (m *mockAssembler) Assemble(_ context.Context, _ domain.Scope, in retrieval.Input) (retrieval.Context, error) {
	m.in = in
	if m.err != nil {
		return retrieval.Context{}, m.err
	}
	return retrieval.Context{
		EffectiveQuery: in.Query,
		Results: []result.Reranked{
			{Snippet: "first", MemoUUID: "m1", MemoTitle: "Alpha"},
			{Snippet: "second"},
		},
	}, nil
}

type mockModel struct {
	chunks []llm.Chunk
}

func (m *mockModel) Invoke(context.Context, llm.Prompt) (string, error) { return "", nil }

func (m *mockModel) Stream(ctx context.Context, _ llm.Prompt) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for _, c := range m.chunks {
			if !llm.Send(ctx, ch, c) {
				return
			}
		}
	}()
	return ch, nil
}

type mockExchanges struct {
	mu    sync.Mutex
	saved []exchange.Exchange
}

func (m *mockExchanges) Save(_ context.Context, _ domain.Scope, ex exchange.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, ex)
	return nil
}

func (m *mockExchanges) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}
