package rng

import "math"

// SampleInCircle draws a point uniformly distributed over the area of a
// circle of the given radius and returns its offset from the center.
//
// The radial distance is sqrt(u)*radius; without the square root samples
// would cluster toward the center. A non-positive radius yields (0, 0)
// and consumes no draws.
func SampleInCircle(s Stream, radius float64) (dx, dy float64, next Stream) {
	if !(radius > 0) {
		return 0, 0, s
	}
	u, s := s.Next01()
	v, s := s.Next01()
	r := math.Sqrt(u) * radius
	theta := v * 2 * math.Pi
	return r * math.Cos(theta), r * math.Sin(theta), s
}
