// apps/go-server/internal/game/engine.go
//
// Throw resolution for a single darts session.
// Responsibilities:
//   - Create new sessions with a clamped dart count.
//   - Validate throw preconditions (darts left, cooldown).
//   - Clamp untrusted aim/radius, derive a per-throw seed, sample the
//     landing point, and score it.
//   - Apply an accepted throw to the session (score, counters, bounded history).
//
// Notes:
//   - Resolve is pure: it never mutates the session. Callers Apply the
//     returned record and persist it.
//   - The sample always uses the clamped radius, never the client's raw value.
package game

import (
	"time"

	"github.com/robalobadob/darts/apps/go-server/internal/board"
	"github.com/robalobadob/darts/apps/go-server/internal/rng"
)

const (
	defaultCooldown   = 500 * time.Millisecond
	defaultHistoryCap = 50
)

// Rules are the tunable server-side limits for a round.
type Rules struct {
	Cooldown   time.Duration // minimum gap between accepted throws
	HistoryCap int           // most recent throws kept per session
}

// DefaultRules returns the standard 500ms cooldown and 50-throw history.
func DefaultRules() Rules {
	return Rules{Cooldown: defaultCooldown, HistoryCap: defaultHistoryCap}
}

// New constructs a fresh session. dartsTotal is clamped to [MinDarts, MaxDarts].
func New(id, playerID, tableID string, seed uint32, dartsTotal int, nowMs int64) *Session {
	n := ClampDarts(dartsTotal)
	return &Session{
		ID:          id,
		PlayerID:    playerID,
		TableID:     tableID,
		Seed:        seed,
		DartsTotal:  n,
		DartsLeft:   n,
		History:     []ThrowRecord{},
		StartedAtMs: nowMs,
	}
}

// Resolve validates and resolves one throw against s without mutating it.
//
// Preconditions, checked in order:
//   - s must exist (ErrNoActiveSession) and have darts left (ErrRoundComplete).
//   - The cooldown since the last accepted throw must have elapsed (*TooFastError).
func Resolve(s *Session, in ThrowInput, nowMs int64, rules Rules) (ThrowRecord, error) {
	if s == nil {
		return ThrowRecord{}, ErrNoActiveSession
	}
	if s.DartsLeft <= 0 {
		return ThrowRecord{}, ErrRoundComplete
	}
	if s.LastThrowAtMs > 0 {
		if wait := rules.Cooldown.Milliseconds() - (nowMs - s.LastThrowAtMs); wait > 0 {
			return ThrowRecord{}, &TooFastError{RetryAfter: time.Duration(wait) * time.Millisecond}
		}
	}

	aim := Point{X: ClampAim(in.AimX), Y: ClampAim(in.AimY)}
	radius := ClampRadius(in.Radius)

	stream := rng.Seed(MixSeed(s.Seed, s.ThrowIndex, in.ElapsedMs))
	dx, dy, _ := rng.SampleInCircle(stream, radius)
	hit := Point{X: aim.X + dx, Y: aim.Y + dy}
	scored := board.Score(hit.X, hit.Y)

	return ThrowRecord{
		Index:      s.ThrowIndex,
		Aim:        aim,
		Radius:     radius,
		Hit:        hit,
		R:          scored.R,
		Angle:      scored.Angle,
		Segment:    scored.Segment,
		TotalScore: s.TotalScore + scored.Segment.Points,
		DartsLeft:  s.DartsLeft - 1,
		AtMs:       nowMs,
	}, nil
}

// Apply records an accepted throw on s. The history keeps only the most
// recent historyCap records; a non-positive cap keeps everything.
func (s *Session) Apply(rec ThrowRecord, historyCap int) {
	s.TotalScore = rec.TotalScore
	s.DartsLeft = rec.DartsLeft
	s.ThrowIndex = rec.Index + 1
	s.LastThrowAtMs = rec.AtMs

	if historyCap > 0 && len(s.History) >= historyCap {
		// Evict the oldest entries in place.
		drop := len(s.History) - historyCap + 1
		n := copy(s.History, s.History[drop:])
		s.History = s.History[:n]
	}
	s.History = append(s.History, rec)
}

// Complete reports whether every dart has been thrown.
func (s *Session) Complete() bool { return s.DartsLeft <= 0 }
