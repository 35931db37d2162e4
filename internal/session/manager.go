// apps/go-server/internal/session/manager.go
//
// Session lifecycle for one player on one table.
// States:
//   - Absent:     no stored session (never started, expired, or completed).
//   - InProgress: stored session with darts left.
//   - Complete:   the last dart was thrown; the session is deleted right away.
//
// Responsibilities:
//   - New: start (or overwrite) a session with a fresh random seed.
//   - Resume: read the current session without touching it.
//   - Throw: load, validate, resolve, persist, then run best-effort side
//     effects (leaderboard, round audit).
//
// Notes:
//   - There is no per-player lock. Two throws from the same player racing
//     past the cooldown check resolve last-write-wins.
//   - Once a throw is resolved, persistence ignores caller cancellation: the
//     drawn outcome cannot be replayed, so it must be saved.
package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robalobadob/darts/apps/go-server/internal/game"
	"github.com/robalobadob/darts/apps/go-server/internal/leaderboard"
	"github.com/robalobadob/darts/apps/go-server/internal/rounds"
	"github.com/robalobadob/darts/apps/go-server/internal/store"
)

const (
	defaultDarts = 10
	defaultTTL   = 7 * 24 * time.Hour
)

// Board is the leaderboard surface the manager feeds.
type Board interface {
	Bump(ctx context.Context, tableID string, p leaderboard.Player, score int) (bool, error)
}

// Recorder persists completed rounds.
type Recorder interface {
	Record(ctx context.Context, r rounds.Round) error
}

// Config holds the session limits.
type Config struct {
	Rules        game.Rules
	DefaultDarts int           // used when a new-game request omits dartsTotal
	TTL          time.Duration // expiry refreshed on every save
}

// DefaultConfig returns 10 darts, a 7 day TTL, and game.DefaultRules.
func DefaultConfig() Config {
	return Config{Rules: game.DefaultRules(), DefaultDarts: defaultDarts, TTL: defaultTTL}
}

// ThrowRequest is a client throw aimed at a specific session.
type ThrowRequest struct {
	SessionID string
	Input     game.ThrowInput
}

// Manager runs the session state machine on top of a KV store.
type Manager struct {
	kv       store.KV
	board    Board
	recorder Recorder
	clock    quartz.Clock
	logger   zerolog.Logger
	cfg      Config
	newID    func() string
	newSeed  func() (uint32, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder enables the completed-round audit log.
func WithRecorder(r Recorder) Option { return func(m *Manager) { m.recorder = r } }

// WithSeedSource replaces crypto/rand as the session seed source.
func WithSeedSource(f func() (uint32, error)) Option { return func(m *Manager) { m.newSeed = f } }

// NewManager builds a Manager. board may be nil to disable leaderboards.
func NewManager(kv store.KV, board Board, clock quartz.Clock, logger zerolog.Logger, cfg Config, opts ...Option) *Manager {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if cfg.DefaultDarts <= 0 {
		cfg.DefaultDarts = defaultDarts
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	m := &Manager{
		kv:      kv,
		board:   board,
		clock:   clock,
		logger:  logger.With().Str("component", "session").Logger(),
		cfg:     cfg,
		newID:   uuid.NewString,
		newSeed: randomSeed,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Config returns the manager's effective configuration.
func (m *Manager) Config() Config { return m.cfg }

func key(tableID, playerID string) string {
	return "darts:" + tableID + ":session:" + playerID
}

// New starts a session for the player, replacing any existing one.
func (m *Manager) New(ctx context.Context, tableID string, p leaderboard.Player, dartsTotal int) (*game.Session, error) {
	seed, err := m.newSeed()
	if err != nil {
		return nil, fmt.Errorf("%w: seed: %v", game.ErrStoreUnavailable, err)
	}
	s := game.New(m.newID(), p.ID, tableID, seed, dartsTotal, m.clock.Now().UnixMilli())
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	m.logger.Info().
		Str("table", tableID).
		Str("player", p.ID).
		Str("session", s.ID).
		Int("darts", s.DartsTotal).
		Msg("session started")
	return s, nil
}

// Resume returns the player's current session, or nil if there is none.
func (m *Manager) Resume(ctx context.Context, tableID, playerID string) (*game.Session, error) {
	return m.load(ctx, key(tableID, playerID))
}

// Throw resolves one throw for the player's current session.
func (m *Manager) Throw(ctx context.Context, tableID string, p leaderboard.Player, req ThrowRequest) (game.ThrowRecord, error) {
	if req.SessionID == "" {
		return game.ThrowRecord{}, game.Invalid("sessionId is required")
	}
	s, err := m.load(ctx, key(tableID, p.ID))
	if err != nil {
		return game.ThrowRecord{}, err
	}
	if s == nil {
		return game.ThrowRecord{}, game.ErrNoActiveSession
	}
	if s.ID != req.SessionID {
		return game.ThrowRecord{}, game.ErrSessionMismatch
	}

	rec, err := game.Resolve(s, req.Input, m.clock.Now().UnixMilli(), m.cfg.Rules)
	if err != nil {
		return game.ThrowRecord{}, err
	}
	s.Apply(rec, m.cfg.Rules.HistoryCap)

	ctx = context.WithoutCancel(ctx)
	if s.Complete() {
		if err := m.kv.Delete(ctx, key(tableID, p.ID)); err != nil {
			return game.ThrowRecord{}, fmt.Errorf("%w: delete session: %v", game.ErrStoreUnavailable, err)
		}
	} else if err := m.save(ctx, s); err != nil {
		return game.ThrowRecord{}, err
	}

	log := m.logger.With().Str("table", tableID).Str("player", p.ID).Str("session", s.ID).Logger()
	log.Debug().
		Int("index", rec.Index).
		Str("segment", rec.Segment.Label).
		Int("total", rec.TotalScore).
		Int("left", rec.DartsLeft).
		Msg("throw resolved")

	if m.board != nil && rec.Segment.Points > 0 {
		if _, err := m.board.Bump(ctx, tableID, p, s.TotalScore); err != nil {
			log.Warn().Err(err).Msg("leaderboard update failed")
		}
	}
	if s.Complete() {
		m.finish(ctx, log, s, p)
	}
	return rec, nil
}

// finish writes the audit record for a completed round.
func (m *Manager) finish(ctx context.Context, log zerolog.Logger, s *game.Session, p leaderboard.Player) {
	log.Info().Int("score", s.TotalScore).Msg("round complete")
	if m.recorder == nil {
		return
	}
	err := m.recorder.Record(ctx, rounds.Round{
		ID:         s.ID,
		TableID:    s.TableID,
		PlayerID:   p.ID,
		PlayerName: leaderboard.DisplayName(p),
		Seed:       s.Seed,
		DartsTotal: s.DartsTotal,
		Score:      s.TotalScore,
		StartedAt:  time.UnixMilli(s.StartedAtMs),
		FinishedAt: time.UnixMilli(s.LastThrowAtMs),
	})
	if err != nil {
		log.Warn().Err(err).Msg("record round failed")
	}
}

func (m *Manager) load(ctx context.Context, k string) (*game.Session, error) {
	raw, ok, err := m.kv.Get(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", game.ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, nil
	}
	var s game.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("%w: decode session: %v", game.ErrStoreUnavailable, err)
	}
	return &s, nil
}

// save writes s and refreshes its TTL. A failed expire is logged, not returned.
func (m *Manager) save(ctx context.Context, s *game.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: encode session: %v", game.ErrStoreUnavailable, err)
	}
	k := key(s.TableID, s.PlayerID)
	if err := m.kv.Set(ctx, k, string(b)); err != nil {
		return fmt.Errorf("%w: %v", game.ErrStoreUnavailable, err)
	}
	if err := m.kv.Expire(ctx, k, m.cfg.TTL); err != nil {
		m.logger.Warn().Err(err).Str("key", k).Msg("set session expiry failed")
	}
	return nil
}

func randomSeed() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
