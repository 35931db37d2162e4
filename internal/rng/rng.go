// apps/go-server/internal/rng/rng.go
//
// Deterministic 32-bit pseudo-random stream used to resolve throws.
// Responsibilities:
//   - Turn a 32-bit seed into a reproducible sequence of draws (xorshift32).
//   - Provide uniform floats in [0, 1) for the circle sampler.
//
// Notes:
//   - Stream is a value type; every draw returns the advanced stream, so a
//     stream can be copied, replayed, and compared without shared state.
//   - This is a fairness primitive, never a source of secrets. Seeds that
//     must be unguessable come from crypto/rand (see session package).
package rng

// zeroSeedReplacement stands in for a zero seed. Xorshift has a fixed point
// at 0, so a zero register would emit zeros forever.
const zeroSeedReplacement uint32 = 0x6D2B79F5

// twoTo32 is the divisor that maps a raw uint32 draw into [0, 1).
const twoTo32 = 4294967296.0

// Stream is an immutable xorshift32 register.
type Stream struct {
	state uint32
}

// Seed returns the stream for seed s. The same seed always yields the same
// infinite sequence.
func Seed(s uint32) Stream {
	if s == 0 {
		s = zeroSeedReplacement
	}
	return Stream{state: s}
}

// Next draws one raw 32-bit value and returns the advanced stream.
func (s Stream) Next() (uint32, Stream) {
	x := s.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	return x, Stream{state: x}
}

// Next01 draws one float in [0, 1).
func (s Stream) Next01() (float64, Stream) {
	v, next := s.Next()
	return float64(v) / twoTo32, next
}
