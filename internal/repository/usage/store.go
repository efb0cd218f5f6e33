package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/memorag/internal/db"
	"github.com/kailas-cloud/memorag/internal/domain"
	domusage "github.com/kailas-cloud/memorag/internal/domain/usage"
)

// Store keeps per-organization monthly counters (INCRBY + GET with TTL).
type Store struct {
	store    db.Counters
	monthTTL time.Duration
}

// New creates a usage store. monthTTL is the TTL for monthly keys (recommended: 62 days).
func New(s db.Counters, monthTTL time.Duration) *Store {
	return &Store{store: s, monthTTL: monthTTL}
}

// Key returns the counter key for an organization, kind and month.
func Key(orgID string, kind domusage.Kind, at time.Time) string {
	return fmt.Sprintf("%susage:%s:%s:monthly:%s", domain.KeyPrefix, orgID, kind, at.UTC().Format("2006-01"))
}

// IncrBy atomically increments the monthly counter and sets its TTL.
func (s *Store) IncrBy(ctx context.Context, orgID string, kind domusage.Kind, at time.Time, val int64) error {
	key := Key(orgID, kind, at)
	if err := s.store.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("usage INCRBY %s: %w", key, err)
	}

	// Set TTL only if the key has no expiry yet (NX, not reset on repeat).
	if err := s.store.Expire(ctx, key, s.monthTTL, true); err != nil {
		return fmt.Errorf("usage EXPIRE %s: %w", key, err)
	}
	return nil
}

// Get returns the monthly counter. Returns 0 if the key does not exist.
func (s *Store) Get(ctx context.Context, orgID string, kind domusage.Kind, at time.Time) (int64, error) {
	key := Key(orgID, kind, at)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("usage GET %s: %w", key, err)
	}
	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("usage GET %s parse: %w", key, err)
	}
	return val, nil
}

// GetMany returns the monthly counters for several kinds in one round trip.
func (s *Store) GetMany(
	ctx context.Context, orgID string, kinds []domusage.Kind, at time.Time,
) (map[domusage.Kind]int64, error) {
	keys := make([]string, len(kinds))
	for i, k := range kinds {
		keys[i] = Key(orgID, k, at)
	}
	vals, err := s.store.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("usage MGET: %w", err)
	}
	out := make(map[domusage.Kind]int64, len(kinds))
	for i, k := range kinds {
		if i >= len(vals) || vals[i] == nil {
			out[k] = 0
			continue
		}
		n, err := strconv.ParseInt(string(vals[i]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("usage MGET %s parse: %w", keys[i], err)
		}
		out[k] = n
	}
	return out, nil
}
