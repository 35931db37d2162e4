// apps/go-server/internal/game/types.go
//
// Core type definitions for the darts game engine.
// Defines:
//   - Point: a board-relative coordinate pair.
//   - ThrowInput: the raw, untrusted values a client submits for one throw.
//   - ThrowRecord: the authoritative, immutable outcome of one accepted throw.
//   - Session: state for a single in-progress round of darts.

package game

import "github.com/robalobadob/darts/apps/go-server/internal/board"

// Point is a position on the board (outer double radius = 1.0, +Y up).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ThrowInput holds the client-submitted values for a throw. None of these
// are trusted: aim and radius are clamped before use, and ElapsedMs only
// feeds seed mixing.
type ThrowInput struct {
	AimX      float64
	AimY      float64
	Radius    float64
	ElapsedMs float64
}

// ThrowRecord is the server-truth result of one throw. Aim and Radius are
// the clamped values that were actually used.
type ThrowRecord struct {
	Index      int           `json:"index"`      // 0-based throw index within the session
	Aim        Point         `json:"aim"`        // clamped aim
	Radius     float64       `json:"radius"`     // clamped precision radius
	Hit        Point         `json:"hit"`        // resolved landing point
	R          float64       `json:"r"`          // polar radius of Hit
	Angle      float64       `json:"angle"`      // radians clockwise from top (0 for misses)
	Segment    board.Segment `json:"segment"`    // scored region
	TotalScore int           `json:"totalScore"` // cumulative score after this throw
	DartsLeft  int           `json:"dartsLeft"`  // darts remaining after this throw
	AtMs       int64         `json:"atMs"`       // server timestamp (unix ms)
}

// Session holds the state of a single round.
//
// Invariants: DartsLeft == DartsTotal - ThrowIndex, and TotalScore is the
// sum of every accepted throw's points (History may be trimmed, the score
// is not).
type Session struct {
	ID            string        `json:"id"`            // unique session identifier
	PlayerID      string        `json:"playerId"`      // owning player (account or anonymous id)
	TableID       string        `json:"tableId"`       // game instance the round belongs to
	Seed          uint32        `json:"seed"`          // fixed at creation; never sent to clients while live
	DartsTotal    int           `json:"dartsTotal"`    // darts allotted for the round
	DartsLeft     int           `json:"dartsLeft"`     // darts remaining
	TotalScore    int           `json:"totalScore"`    // cumulative score
	ThrowIndex    int           `json:"throwIndex"`    // index of the next throw
	History       []ThrowRecord `json:"history"`       // most recent throws, oldest first
	LastThrowAtMs int64         `json:"lastThrowAtMs"` // unix ms of the last accepted throw (0 = none)
	StartedAtMs   int64         `json:"startedAtMs"`   // unix ms of creation
}

// View is the client-facing projection of a Session. It omits the seed.
type View struct {
	ID         string        `json:"id"`
	TableID    string        `json:"tableId"`
	DartsTotal int           `json:"dartsTotal"`
	DartsLeft  int           `json:"dartsLeft"`
	TotalScore int           `json:"totalScore"`
	ThrowIndex int           `json:"throwIndex"`
	History    []ThrowRecord `json:"history"`
	StartedAt  int64         `json:"startedAtMs"`
}

// View returns the client-facing projection of s.
func (s *Session) View() View {
	h := s.History
	if h == nil {
		h = []ThrowRecord{}
	}
	return View{
		ID:         s.ID,
		TableID:    s.TableID,
		DartsTotal: s.DartsTotal,
		DartsLeft:  s.DartsLeft,
		TotalScore: s.TotalScore,
		ThrowIndex: s.ThrowIndex,
		History:    h,
		StartedAt:  s.StartedAtMs,
	}
}
