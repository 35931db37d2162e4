package game

import "math"

// Input bounds. Out-of-range values are corrected, never rejected.
const (
	AimLimit       = 1.25
	MinRadius      = 0.02
	MaxRadius      = 0.40
	FallbackRadius = (MinRadius + MaxRadius) / 2

	MinDarts = 1
	MaxDarts = 30
)

// Odd multiplicative constants for per-throw seed mixing.
const (
	throwMix   uint32 = 0x9E3779B1
	elapsedMix uint32 = 0x85EBCA6B
)

// ClampAim forces an aim component into [-AimLimit, AimLimit]. Non-finite
// values become 0 (dead center).
func ClampAim(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return clamp(v, -AimLimit, AimLimit)
}

// ClampRadius forces a precision radius into [MinRadius, MaxRadius].
// Non-finite values become FallbackRadius so a glitching client gets an
// average throw instead of either extreme.
func ClampRadius(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return FallbackRadius
	}
	return clamp(v, MinRadius, MaxRadius)
}

// ClampDarts forces a requested dart count into [MinDarts, MaxDarts].
func ClampDarts(n int) int {
	if n < MinDarts {
		return MinDarts
	}
	if n > MaxDarts {
		return MaxDarts
	}
	return n
}

// MixSeed derives the seed for one throw from the session seed (server
// secret), the throw index and the client-reported elapsed time. The
// elapsed time only separates otherwise identical requests; without the
// session seed the client cannot steer the outcome.
func MixSeed(sessionSeed uint32, throwIndex int, elapsedMs float64) uint32 {
	return sessionSeed ^ (uint32(throwIndex+1) * throwMix) ^ (elapsedNonce(elapsedMs) * elapsedMix)
}

// elapsedNonce truncates an untrusted elapsed time into a uint32.
func elapsedNonce(ms float64) uint32 {
	if math.IsNaN(ms) || ms <= 0 {
		return 0
	}
	if ms >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
