package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepingKV interface {
	KV
	Sweeper
}

type kvFactory func(t *testing.T, clock quartz.Clock) sweepingKV

func backends() map[string]kvFactory {
	return map[string]kvFactory{
		"memory": func(t *testing.T, clock quartz.Clock) sweepingKV {
			return NewMemoryStore(clock)
		},
		"sqlite": func(t *testing.T, clock quartz.Clock) sweepingKV {
			db, err := OpenSQLite(filepath.Join(t.TempDir(), "darts.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			require.NoError(t, Migrate(db, zerolog.Nop()))
			return NewSQLiteStore(db, clock)
		},
	}
}

func TestKeyValue(t *testing.T) {
	for name, newKV := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := newKV(t, quartz.NewMock(t))

			_, ok, err := kv.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, kv.Set(ctx, "a", "1"))
			v, ok, err := kv.Get(ctx, "a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "1", v)

			require.NoError(t, kv.Set(ctx, "a", "2"))
			v, _, _ = kv.Get(ctx, "a")
			assert.Equal(t, "2", v)

			require.NoError(t, kv.Delete(ctx, "a"))
			_, ok, _ = kv.Get(ctx, "a")
			assert.False(t, ok)

			assert.NoError(t, kv.Delete(ctx, "a"), "deleting a missing key is a no-op")
			assert.NoError(t, kv.Expire(ctx, "nope", time.Minute), "expiring a missing key is a no-op")
		})
	}
}

func TestExpiry(t *testing.T) {
	for name, newKV := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := quartz.NewMock(t)
			kv := newKV(t, clock)

			require.NoError(t, kv.Set(ctx, "session", "x"))
			require.NoError(t, kv.Expire(ctx, "session", 7*24*time.Hour))

			clock.Advance(7*24*time.Hour - time.Second).MustWait(ctx)
			_, ok, err := kv.Get(ctx, "session")
			require.NoError(t, err)
			assert.True(t, ok, "still alive just before the deadline")

			clock.Advance(time.Second).MustWait(ctx)
			_, ok, err = kv.Get(ctx, "session")
			require.NoError(t, err)
			assert.False(t, ok, "gone at the deadline")
		})
	}
}

func TestSetClearsExpiry(t *testing.T) {
	for name, newKV := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := quartz.NewMock(t)
			kv := newKV(t, clock)

			require.NoError(t, kv.Set(ctx, "k", "v1"))
			require.NoError(t, kv.Expire(ctx, "k", time.Minute))
			require.NoError(t, kv.Set(ctx, "k", "v2"))

			clock.Advance(2 * time.Minute).MustWait(ctx)
			v, ok, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v2", v)
		})
	}
}

func TestSweep(t *testing.T) {
	for name, newKV := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := quartz.NewMock(t)
			kv := newKV(t, clock)

			require.NoError(t, kv.Set(ctx, "short", "1"))
			require.NoError(t, kv.Expire(ctx, "short", time.Second))
			require.NoError(t, kv.Set(ctx, "long", "2"))
			require.NoError(t, kv.Expire(ctx, "long", time.Hour))
			require.NoError(t, kv.Set(ctx, "forever", "3"))

			clock.Advance(time.Minute).MustWait(ctx)
			n, err := kv.Sweep(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, ok, _ := kv.Get(ctx, "long")
			assert.True(t, ok)
			_, ok, _ = kv.Get(ctx, "forever")
			assert.True(t, ok)
		})
	}
}

func TestSortedSet(t *testing.T) {
	for name, newKV := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := newKV(t, quartz.NewMock(t))

			changed, err := kv.UpsertIfHigher(ctx, "lb", "p", 10)
			require.NoError(t, err)
			assert.True(t, changed, "first write creates the entry")

			changed, err = kv.UpsertIfHigher(ctx, "lb", "p", 5)
			require.NoError(t, err)
			assert.False(t, changed, "lower score is a no-op")

			changed, err = kv.UpsertIfHigher(ctx, "lb", "p", 10)
			require.NoError(t, err)
			assert.False(t, changed, "equal score is a no-op")

			score, ok, err := kv.ScoreOf(ctx, "lb", "p")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 10.0, score)

			changed, err = kv.UpsertIfHigher(ctx, "lb", "p", 15)
			require.NoError(t, err)
			assert.True(t, changed)
			score, _, _ = kv.ScoreOf(ctx, "lb", "p")
			assert.Equal(t, 15.0, score)

			_, ok, err = kv.ScoreOf(ctx, "lb", "nobody")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestTopDescending(t *testing.T) {
	for name, newKV := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := newKV(t, quartz.NewMock(t))

			for member, score := range map[string]float64{"c": 30, "a": 50, "b": 30, "d": 10} {
				_, err := kv.UpsertIfHigher(ctx, "lb", member, score)
				require.NoError(t, err)
			}
			_, err := kv.UpsertIfHigher(ctx, "other", "z", 999)
			require.NoError(t, err)

			top, err := kv.TopDescending(ctx, "lb", 3)
			require.NoError(t, err)
			assert.Equal(t, []Member{{"a", 50}, {"b", 30}, {"c", 30}}, top)

			all, err := kv.TopDescending(ctx, "lb", 100)
			require.NoError(t, err)
			assert.Len(t, all, 4)

			none, err := kv.TopDescending(ctx, "empty", 5)
			require.NoError(t, err)
			assert.Empty(t, none)

			zero, err := kv.TopDescending(ctx, "lb", 0)
			require.NoError(t, err)
			assert.Empty(t, zero)
		})
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "darts.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, zerolog.Nop()))
	require.NoError(t, Migrate(db, zerolog.Nop()))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM _migrations`).Scan(&n))
	assert.Equal(t, 3, n)
}
