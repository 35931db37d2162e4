// apps/go-server/internal/board/board.go
//
// Dartboard geometry and scoring.
// Responsibilities:
//   - Static board constants (ring radii normalized to an outer double of 1.0,
//     clockwise wedge order starting at the top).
//   - Score: map a board-relative point to a scored Segment plus polar data.
//
// Coordinate system: origin at the bull, +X to the right, +Y up. Angles are
// measured clockwise from the top (12 o'clock) and normalized into [0, 2π).
//
// Boundary policy: points within RingEpsilon of a double or triple ring edge
// resolve to the ring (the higher multiplier). This favors the player and
// keeps floating-point noise from flickering a result between ×1 and ×2/×3.
package board

import (
	"math"
	"strconv"
)

// Normalized ring radii.
const (
	DoubleBullRadius  = 0.05
	SingleBullRadius  = 0.12
	TripleInnerRadius = 0.55
	TripleOuterRadius = 0.60
	DoubleInnerRadius = 0.95
	DoubleOuterRadius = 1.0

	RingEpsilon = 0.001
)

// Fixed scores and labels for the non-wedge regions.
const (
	DoubleBullPoints = 50
	SingleBullPoints = 25

	LabelDoubleBull = "DBULL"
	LabelSingleBull = "SBULL"
	LabelMiss       = "MISS"
)

// WedgeCount is the number of angular sectors on the board.
const WedgeCount = 20

// WedgeWidth is the angular width of one wedge (18°).
const WedgeWidth = 2 * math.Pi / WedgeCount

// WedgeOrder lists wedge numbers clockwise starting with the wedge centered
// at the top of the board.
var WedgeOrder = [WedgeCount]int{20, 1, 18, 4, 13, 6, 10, 15, 2, 17, 3, 19, 7, 16, 8, 11, 14, 9, 12, 5}

// Segment is the scored region a point landed in.
type Segment struct {
	Number     int    `json:"number"`     // wedge number; 0 for miss, 25/50 for bulls
	Multiplier int    `json:"multiplier"` // 1, 2 or 3
	Label      string `json:"label"`      // "20", "D20", "T20", "SBULL", "DBULL", "MISS"
	Points     int    `json:"points"`
}

// Hit is the scored result of a point together with its polar coordinates.
type Hit struct {
	Segment Segment `json:"segment"`
	R       float64 `json:"r"`     // distance from the center
	Angle   float64 `json:"angle"` // radians clockwise from top; 0 for misses
}

// Score resolves the point (x, y) on the board. It is pure.
func Score(x, y float64) Hit {
	r := math.Hypot(x, y)

	switch {
	case !(r <= DoubleOuterRadius):
		// Also catches NaN coordinates.
		return Hit{Segment: Segment{Multiplier: 1, Label: LabelMiss}, R: r}
	case r <= DoubleBullRadius:
		return Hit{Segment: Segment{Number: DoubleBullPoints, Multiplier: 1, Label: LabelDoubleBull, Points: DoubleBullPoints}, R: r}
	case r <= SingleBullRadius:
		return Hit{Segment: Segment{Number: SingleBullPoints, Multiplier: 1, Label: LabelSingleBull, Points: SingleBullPoints}, R: r}
	}

	angle := AngleFromTop(x, y)
	number := WedgeAt(angle)
	mult := MultiplierAt(r)
	return Hit{
		Segment: Segment{
			Number:     number,
			Multiplier: mult,
			Label:      label(number, mult),
			Points:     number * mult,
		},
		R:     r,
		Angle: angle,
	}
}

// AngleFromTop returns the clockwise angle of (x, y) from the top of the
// board, normalized into [0, 2π).
func AngleFromTop(x, y float64) float64 {
	a := math.Atan2(x, y)
	if a < 0 {
		a += 2 * math.Pi
	}
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}

// WedgeAt maps a clockwise-from-top angle to its wedge number. Each wedge is
// centered on its nominal direction, so boundaries sit half a wedge (9°)
// either side of center.
func WedgeAt(angle float64) int {
	idx := int(math.Floor((angle+WedgeWidth/2)/WedgeWidth)) % WedgeCount
	if idx < 0 {
		idx += WedgeCount
	}
	return WedgeOrder[idx]
}

// MultiplierAt returns the ring multiplier for a radius outside the bulls.
func MultiplierAt(r float64) int {
	switch {
	case r >= DoubleInnerRadius-RingEpsilon && r <= DoubleOuterRadius+RingEpsilon:
		return 2
	case r >= TripleInnerRadius-RingEpsilon && r <= TripleOuterRadius+RingEpsilon:
		return 3
	default:
		return 1
	}
}

func label(number, mult int) string {
	n := strconv.Itoa(number)
	switch mult {
	case 2:
		return "D" + n
	case 3:
		return "T" + n
	default:
		return n
	}
}
