// apps/go-server/internal/store/store.go
//
// Persistence collaborator for sessions and leaderboards.
// The game core only needs a small surface, modeled on a Redis-like server:
//   - string keys with optional per-key expiry (sessions, display names);
//   - sorted sets with "upsert if higher" semantics (leaderboards).
//
// Implementations: in-memory (memory.go) and SQLite (sqlite.go).

package store

import (
	"context"
	"time"
)

// Member is one scored entry of a sorted set.
type Member struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// KV is the key-value and sorted-set surface used by the game.
type KV interface {
	// Get returns the value for key. ok is false if the key is missing or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key and clears any previous expiry.
	Set(ctx context.Context, key, value string) error

	// Expire sets a time-to-live on an existing key. Missing keys are a no-op.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes key. Missing keys are a no-op.
	Delete(ctx context.Context, key string) error

	// UpsertIfHigher sets member's score when the member is new or score
	// exceeds the stored one. It reports whether anything changed.
	UpsertIfHigher(ctx context.Context, setKey, member string, score float64) (bool, error)

	// TopDescending returns up to n members ordered by score descending.
	// Ties are ordered by member name so the order is stable.
	TopDescending(ctx context.Context, setKey string, n int) ([]Member, error)

	// ScoreOf returns member's score; ok is false if it has none.
	ScoreOf(ctx context.Context, setKey, member string) (score float64, ok bool, err error)
}

// Sweeper is implemented by stores that can purge expired keys eagerly.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}
