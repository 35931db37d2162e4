// Package leaderboard keeps the best single-round score per player for each
// table, on top of the store's sorted-set primitive.
//
// Members are stable account ids, so two players sharing a display name
// never collide. The display name is stored alongside as metadata.
package leaderboard

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/darts/apps/go-server/internal/store"
)

const (
	defaultPreviewSize    = 10
	defaultPreviewTimeout = 2 * time.Second
	fallbackNameLen       = 8
)

// Player identifies who owns a score.
type Player struct {
	ID   string
	Name string // optional display name
}

// Entry is one ranked row.
type Entry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Player   string `json:"player"`
	Score    int    `json:"score"`
}

// Notifier receives the current top entries after a table's leaderboard
// improves. Calls happen off the request path and must not block for long.
type Notifier interface {
	LeaderboardChanged(tableID string, top []Entry)
}

// Service reads and writes per-table leaderboards.
type Service struct {
	kv          store.KV
	logger      zerolog.Logger
	notifier    Notifier
	previewSize int
	timeout     time.Duration
	wg          sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the receiver for leaderboard change previews.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithPreviewSize sets how many entries a preview carries.
func WithPreviewSize(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.previewSize = k
		}
	}
}

// New returns a Service backed by kv.
func New(kv store.KV, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		kv:          kv,
		logger:      logger.With().Str("component", "leaderboard").Logger(),
		previewSize: defaultPreviewSize,
		timeout:     defaultPreviewTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func setKey(tableID string) string { return "darts:" + tableID + ":leaderboard" }

func nameKey(tableID, playerID string) string {
	return "darts:" + tableID + ":leaderboard:name:" + playerID
}

// DisplayName returns p's name, or a truncated id when it has none.
func DisplayName(p Player) string {
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	if len(p.ID) > fallbackNameLen {
		return p.ID[:fallbackNameLen]
	}
	return p.ID
}

// Bump records score for p if it beats p's stored best on this table. It
// reports whether the stored best changed. On change, a preview is sent to
// the notifier asynchronously.
func (s *Service) Bump(ctx context.Context, tableID string, p Player, score int) (bool, error) {
	changed, err := s.kv.UpsertIfHigher(ctx, setKey(tableID), p.ID, float64(score))
	if err != nil || !changed {
		return false, err
	}
	if err := s.kv.Set(ctx, nameKey(tableID, p.ID), DisplayName(p)); err != nil {
		s.logger.Warn().Err(err).Str("table", tableID).Str("player", p.ID).Msg("store display name")
	}
	s.publish(tableID)
	return true, nil
}

// Best returns p's stored best on this table.
func (s *Service) Best(ctx context.Context, tableID, playerID string) (int, bool, error) {
	score, ok, err := s.kv.ScoreOf(ctx, setKey(tableID), playerID)
	return int(score), ok, err
}

// Top returns the k highest scores on the table, descending, ranked from 1.
func (s *Service) Top(ctx context.Context, tableID string, k int) ([]Entry, error) {
	members, err := s.kv.TopDescending(ctx, setKey(tableID), k)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(members))
	for i, m := range members {
		name, ok, err := s.kv.Get(ctx, nameKey(tableID, m.Member))
		if err != nil || !ok {
			name = DisplayName(Player{ID: m.Member})
		}
		out = append(out, Entry{
			Rank:     i + 1,
			PlayerID: m.Member,
			Player:   name,
			Score:    int(m.Score),
		})
	}
	return out, nil
}

// publish fires a preview without blocking the caller.
func (s *Service) publish(tableID string) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Str("table", tableID).Msg("preview notifier panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		top, err := s.Top(ctx, tableID, s.previewSize)
		if err != nil {
			s.logger.Warn().Err(err).Str("table", tableID).Msg("load leaderboard preview")
			return
		}
		s.notifier.LeaderboardChanged(tableID, top)
	}()
}

// Wait blocks until in-flight previews have been delivered.
func (s *Service) Wait() { s.wg.Wait() }
