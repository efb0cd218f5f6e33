package rerank

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
	"github.com/kailas-cloud/memorag/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

func TestLexical_ScoresByTermOverlap(t *testing.T) {
	l := NewLexical(0)
	snippets := []string{
		"Quarterly revenue grew in Europe",
		"Nothing relevant here",
		"Revenue report",
	}
	refs := []result.Ref{{MemoUUID: "m1", MemoTitle: "T1"}, {MemoUUID: "m2"}, {MemoUUID: "m3", MemoTitle: "T3"}}

	out, err := l.Rerank(context.Background(), "What was the revenue in Europe?", snippets, refs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0].Score != 1 {
		t.Errorf("expected full overlap for snippet 0, got %v", out[0].Score)
	}
	if out[1].Score != 0 {
		t.Errorf("expected no overlap for snippet 1, got %v", out[1].Score)
	}
	if out[2].Score != 0.5 {
		t.Errorf("expected half overlap for snippet 2, got %v", out[2].Score)
	}
	if out[2].Index != 2 || out[2].MemoUUID != "m3" || out[2].MemoTitle != "T3" {
		t.Errorf("metadata not carried: %+v", out[2])
	}
}

func TestLexical_MinScore(t *testing.T) {
	l := NewLexical(0.5)
	out, err := l.Rerank(context.Background(), "revenue europe",
		[]string{"revenue europe", "revenue", "other"},
		make([]result.Ref, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results at or above min score, got %d", len(out))
	}
}

func TestLexical_StopwordOnlyQuery(t *testing.T) {
	out, err := NewLexical(0).Rerank(context.Background(), "what is the", []string{"anything"}, make([]result.Ref, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Score != 0 {
		t.Errorf("expected single zero score, got %+v", out)
	}
}

func TestLexical_RefsMismatch(t *testing.T) {
	_, err := NewLexical(0).Rerank(context.Background(), "q", []string{"a"}, nil)
	if !errors.Is(err, domain.ErrRerankFailed) {
		t.Errorf("expected ErrRerankFailed, got %v", err)
	}
}

func TestLexical_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLexical(0).Rerank(ctx, "q", []string{"a"}, make([]result.Ref, 1))
	if !errors.Is(err, domain.ErrRerankFailed) {
		t.Errorf("expected ErrRerankFailed, got %v", err)
	}
}
