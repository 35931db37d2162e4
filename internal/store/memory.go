// apps/go-server/internal/store/memory.go
//
// In-memory implementation of the KV interface.
// This is a lightweight persistence layer used for ephemeral sessions,
// primarily in development/testing, or when durability is not required.
//
// Characteristics:
//   - Keys and sorted sets live in maps.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Expiry is checked against an injectable clock on read and by Sweep.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
)

type memEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

// Memory is an in-memory map-based KV implementation.
type Memory struct {
	clock quartz.Clock
	mu    sync.RWMutex                  // guards keys and sets
	keys  map[string]memEntry           // keyed by KV key
	sets  map[string]map[string]float64 // set key -> member -> score
}

// NewMemoryStore constructs a new in-memory KV.
func NewMemoryStore(clock quartz.Clock) *Memory {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Memory{
		clock: clock,
		keys:  make(map[string]memEntry),
		sets:  make(map[string]map[string]float64),
	}
}

func (m *Memory) expired(e memEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Get looks up a key, treating expired entries as missing.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.keys[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if m.expired(e, m.clock.Now()) {
		m.mu.Lock()
		if cur, ok := m.keys[key]; ok && m.expired(cur, m.clock.Now()) {
			delete(m.keys, key)
		}
		m.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

// Set adds or replaces a key and clears its expiry.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = memEntry{value: value}
	return nil
}

// Expire sets a deadline on an existing key.
func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[key]
	if !ok {
		return nil
	}
	e.expiresAt = m.clock.Now().Add(ttl)
	m.keys[key] = e
	return nil
}

// Delete removes a key.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// UpsertIfHigher creates the set on first write.
func (m *Memory) UpsertIfHigher(ctx context.Context, setKey, member string, score float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[setKey]
	if !ok {
		set = make(map[string]float64)
		m.sets[setKey] = set
	}
	if cur, ok := set[member]; ok && score <= cur {
		return false, nil
	}
	set[member] = score
	return true, nil
}

// TopDescending sorts a snapshot of the set.
func (m *Memory) TopDescending(ctx context.Context, setKey string, n int) ([]Member, error) {
	if n <= 0 {
		return []Member{}, nil
	}
	m.mu.RLock()
	out := make([]Member, 0, len(m.sets[setKey]))
	for member, score := range m.sets[setKey] {
		out = append(out, Member{Member: member, Score: score})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// ScoreOf looks up one member.
func (m *Memory) ScoreOf(ctx context.Context, setKey, member string) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.sets[setKey][member]
	return score, ok, nil
}

// Sweep drops every expired key and reports how many were removed.
func (m *Memory) Sweep(ctx context.Context) (int, error) {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.keys {
		if m.expired(e, now) {
			delete(m.keys, k)
			n++
		}
	}
	return n, nil
}
