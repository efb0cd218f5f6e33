package usage

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/memorag/internal/db"
	domusage "github.com/kailas-cloud/memorag/internal/domain/usage"
)

type mockKV struct {
	data      map[string][]byte
	incrErr   error
	expireNX  []bool
	expireTTL []time.Duration
}

func newMockKV() *mockKV { return &mockKV{data: map[string][]byte{}} }

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) MGet(_ context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *mockKV) IncrBy(_ context.Context, key string, val int64) error {
	if m.incrErr != nil {
		return m.incrErr
	}
	cur, _ := strconv.ParseInt(string(m.data[key]), 10, 64)
	m.data[key] = []byte(strconv.FormatInt(cur+val, 10))
	return nil
}

func (m *mockKV) Expire(_ context.Context, _ string, ttl time.Duration, nx bool) error {
	m.expireNX = append(m.expireNX, nx)
	m.expireTTL = append(m.expireTTL, ttl)
	return nil
}

var october = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

func TestKey(t *testing.T) {
	got := Key("org-1", domusage.KindChat, october)
	if got != "memorag:usage:org-1:chat:monthly:2026-10" {
		t.Errorf("Key = %q", got)
	}
}

func TestIncrByThenGet(t *testing.T) {
	kv := newMockKV()
	s := New(kv, 62*24*time.Hour)
	ctx := context.Background()

	for range 3 {
		if err := s.IncrBy(ctx, "org-1", domusage.KindSearch, october, 1); err != nil {
			t.Fatalf("IncrBy: %v", err)
		}
	}
	got, err := s.Get(ctx, "org-1", domusage.KindSearch, october)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 3 {
		t.Errorf("Get = %d, want 3", got)
	}
	for i, nx := range kv.expireNX {
		if !nx {
			t.Errorf("expire[%d] without NX", i)
		}
	}
	if kv.expireTTL[0] != 62*24*time.Hour {
		t.Errorf("ttl = %v", kv.expireTTL[0])
	}
}

func TestGet_MissingIsZero(t *testing.T) {
	s := New(newMockKV(), time.Hour)
	got, err := s.Get(context.Background(), "org-1", domusage.KindChat, october)
	if err != nil || got != 0 {
		t.Errorf("expected 0, nil; got %d, %v", got, err)
	}
}

func TestIncrBy_Error(t *testing.T) {
	kv := newMockKV()
	kv.incrErr = errors.New("READONLY")
	s := New(kv, time.Hour)
	if err := s.IncrBy(context.Background(), "org-1", domusage.KindChat, october, 1); err == nil {
		t.Fatal("expected error")
	}
	if len(kv.expireNX) != 0 {
		t.Error("expire must not run after a failed increment")
	}
}

func TestGetMany(t *testing.T) {
	kv := newMockKV()
	kv.data[Key("org-1", domusage.KindChat, october)] = []byte("7")
	s := New(kv, time.Hour)

	got, err := s.GetMany(context.Background(), "org-1", domusage.Kinds, october)
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if got[domusage.KindChat] != 7 || got[domusage.KindSearch] != 0 || got[domusage.KindEmbeddingTokens] != 0 {
		t.Errorf("unexpected counters %v", got)
	}
}
