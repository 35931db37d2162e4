package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/darts/apps/go-server/internal/game"
	"github.com/robalobadob/darts/apps/go-server/internal/leaderboard"
	"github.com/robalobadob/darts/apps/go-server/internal/rounds"
	"github.com/robalobadob/darts/apps/go-server/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	rounds []rounds.Round
}

func (r *recorder) Record(_ context.Context, rd rounds.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, rd)
	return nil
}

type brokenBoard struct{ calls int }

func (b *brokenBoard) Bump(context.Context, string, leaderboard.Player, int) (bool, error) {
	b.calls++
	return false, errors.New("leaderboard down")
}

type harness struct {
	clock *quartz.Mock
	kv    *store.Memory
	lb    *leaderboard.Service
	rec   *recorder
	mgr   *Manager
}

func fixedSeed(seed uint32) Option {
	return WithSeedSource(func() (uint32, error) { return seed, nil })
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	clock := quartz.NewMock(t)
	kv := store.NewMemoryStore(clock)
	lb := leaderboard.New(kv, zerolog.Nop())
	rec := &recorder{}
	opts = append([]Option{WithRecorder(rec)}, opts...)
	return &harness{
		clock: clock,
		kv:    kv,
		lb:    lb,
		rec:   rec,
		mgr:   NewManager(kv, lb, clock, zerolog.Nop(), DefaultConfig(), opts...),
	}
}

var alice = leaderboard.Player{ID: "acct-alice", Name: "alice"}

func bullseye(id string) ThrowRequest {
	return ThrowRequest{SessionID: id, Input: game.ThrowInput{Radius: 0.02, ElapsedMs: 1200}}
}

func TestFullRoundLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, fixedSeed(42))

	s, err := h.mgr.New(ctx, "main", alice, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, s.DartsLeft)
	assert.Equal(t, uint32(42), s.Seed)

	var last game.ThrowRecord
	for i := 0; i < 10; i++ {
		if i > 0 {
			h.clock.Advance(500 * time.Millisecond).MustWait(ctx)
		}
		last, err = h.mgr.Throw(ctx, "main", alice, bullseye(s.ID))
		require.NoError(t, err, "throw %d", i)
		assert.Equal(t, i, last.Index)
		assert.Equal(t, 9-i, last.DartsLeft)
	}

	got, err := h.mgr.Resume(ctx, "main", alice.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "completed sessions are removed")

	h.clock.Advance(time.Second).MustWait(ctx)
	_, err = h.mgr.Throw(ctx, "main", alice, bullseye(s.ID))
	assert.ErrorIs(t, err, game.ErrNoActiveSession)

	require.Len(t, h.rec.rounds, 1)
	round := h.rec.rounds[0]
	assert.Equal(t, s.ID, round.ID)
	assert.Equal(t, uint32(42), round.Seed)
	assert.Equal(t, "alice", round.PlayerName)
	assert.Equal(t, last.TotalScore, round.Score)

	best, ok, err := h.lb.Best(ctx, "main", alice.ID)
	require.NoError(t, err)
	require.True(t, ok, "aiming at the bull with the tightest radius always scores")
	assert.Equal(t, last.TotalScore, best)
}

func TestResumeReturnsStoredSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	s, err := h.mgr.New(ctx, "main", alice, 5)
	require.NoError(t, err)
	rec, err := h.mgr.Throw(ctx, "main", alice, bullseye(s.ID))
	require.NoError(t, err)

	got, err := h.mgr.Resume(ctx, "main", alice.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, 4, got.DartsLeft)
	assert.Equal(t, rec.TotalScore, got.TotalScore)
	require.Len(t, got.History, 1)
	assert.Equal(t, rec.Segment, got.History[0].Segment)

	none, err := h.mgr.Resume(ctx, "other-table", alice.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestThrowCooldown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	s, err := h.mgr.New(ctx, "main", alice, 10)
	require.NoError(t, err)
	_, err = h.mgr.Throw(ctx, "main", alice, bullseye(s.ID))
	require.NoError(t, err)

	h.clock.Advance(499 * time.Millisecond).MustWait(ctx)
	_, err = h.mgr.Throw(ctx, "main", alice, bullseye(s.ID))
	require.ErrorIs(t, err, game.ErrTooFast)
	var tooFast *game.TooFastError
	require.ErrorAs(t, err, &tooFast)
	assert.Equal(t, time.Millisecond, tooFast.RetryAfter)

	got, err := h.mgr.Resume(ctx, "main", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.DartsLeft, "rejected throws do not consume darts")

	h.clock.Advance(time.Millisecond).MustWait(ctx)
	_, err = h.mgr.Throw(ctx, "main", alice, bullseye(s.ID))
	assert.NoError(t, err)
}

func TestThrowValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.mgr.Throw(ctx, "main", alice, ThrowRequest{})
	assert.ErrorIs(t, err, game.ErrValidation)

	_, err = h.mgr.Throw(ctx, "main", alice, bullseye("missing"))
	assert.ErrorIs(t, err, game.ErrNoActiveSession)

	_, err = h.mgr.New(ctx, "main", alice, 3)
	require.NoError(t, err)
	_, err = h.mgr.Throw(ctx, "main", alice, bullseye("stale-id"))
	assert.ErrorIs(t, err, game.ErrSessionMismatch)
}

func TestNewOverwritesExistingSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.mgr.New(ctx, "main", alice, 3)
	require.NoError(t, err)
	second, err := h.mgr.New(ctx, "main", alice, 7)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	_, err = h.mgr.Throw(ctx, "main", alice, bullseye(first.ID))
	assert.ErrorIs(t, err, game.ErrSessionMismatch)

	got, err := h.mgr.Resume(ctx, "main", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.DartsTotal)
}

func TestNewClampsDarts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	s, err := h.mgr.New(ctx, "main", alice, 99)
	require.NoError(t, err)
	assert.Equal(t, game.MaxDarts, s.DartsTotal)

	s, err = h.mgr.New(ctx, "main", alice, 0)
	require.NoError(t, err)
	assert.Equal(t, game.MinDarts, s.DartsTotal)
}

func TestSessionsExpire(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	s, err := h.mgr.New(ctx, "main", alice, 10)
	require.NoError(t, err)

	h.clock.Advance(DefaultConfig().TTL - time.Second).MustWait(ctx)
	got, err := h.mgr.Resume(ctx, "main", alice.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	h.clock.Advance(time.Second).MustWait(ctx)
	got, err = h.mgr.Resume(ctx, "main", alice.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = h.mgr.Throw(ctx, "main", alice, bullseye(s.ID))
	assert.ErrorIs(t, err, game.ErrNoActiveSession)
}

func TestThrowRefreshesExpiry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ttl := DefaultConfig().TTL

	s, err := h.mgr.New(ctx, "main", alice, 10)
	require.NoError(t, err)

	h.clock.Advance(ttl - time.Minute).MustWait(ctx)
	_, err = h.mgr.Throw(ctx, "main", alice, bullseye(s.ID))
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute).MustWait(ctx)
	got, err := h.mgr.Resume(ctx, "main", alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestLeaderboardFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	kv := store.NewMemoryStore(clock)
	board := &brokenBoard{}
	mgr := NewManager(kv, board, clock, zerolog.Nop(), DefaultConfig())

	s, err := mgr.New(ctx, "main", alice, 2)
	require.NoError(t, err)
	rec, err := mgr.Throw(ctx, "main", alice, bullseye(s.ID))
	require.NoError(t, err)
	assert.Positive(t, rec.Segment.Points)
	assert.Equal(t, 1, board.calls)

	got, err := mgr.Resume(ctx, "main", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.TotalScore, got.TotalScore, "the throw is persisted regardless")
}

func TestSameSeedSameOutcomes(t *testing.T) {
	ctx := context.Background()
	inputs := []game.ThrowInput{
		{AimX: 0, AimY: 0.57, Radius: 0.3, ElapsedMs: 812},
		{AimX: -0.4, AimY: 0.1, Radius: 0.15, ElapsedMs: 1500},
		{AimX: 2, AimY: -2, Radius: 5, ElapsedMs: -1},
	}

	play := func() []game.ThrowRecord {
		h := newHarness(t, fixedSeed(0xC0FFEE))
		s, err := h.mgr.New(ctx, "main", alice, len(inputs))
		require.NoError(t, err)
		var out []game.ThrowRecord
		for i, in := range inputs {
			if i > 0 {
				h.clock.Advance(time.Second).MustWait(ctx)
			}
			rec, err := h.mgr.Throw(ctx, "main", alice, ThrowRequest{SessionID: s.ID, Input: in})
			require.NoError(t, err)
			rec.AtMs = 0
			out = append(out, rec)
		}
		return out
	}

	assert.Equal(t, play(), play())
}

type failingGetKV struct{ store.KV }

func (failingGetKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func TestStoreErrorsSurface(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	kv := failingGetKV{store.NewMemoryStore(clock)}
	mgr := NewManager(kv, nil, clock, zerolog.Nop(), DefaultConfig())

	_, err := mgr.Resume(ctx, "main", alice.ID)
	assert.ErrorIs(t, err, game.ErrStoreUnavailable)
	_, err = mgr.Throw(ctx, "main", alice, bullseye("x"))
	assert.ErrorIs(t, err, game.ErrStoreUnavailable)
}
