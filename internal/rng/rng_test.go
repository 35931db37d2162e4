package rng

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDeterministic(t *testing.T) {
	seeds := []uint32{0, 1, 42, 0xDEADBEEF, math.MaxUint32}

	for _, seed := range seeds {
		a, b := Seed(seed), Seed(seed)
		for i := 0; i < 10000; i++ {
			var va, vb uint32
			va, a = a.Next()
			vb, b = b.Next()
			require.Equal(t, va, vb, "seed %d diverged at draw %d", seed, i)
		}
	}
}

func TestStreamIsImmutable(t *testing.T) {
	s := Seed(7)
	first, _ := s.Next()
	again, _ := s.Next()
	assert.Equal(t, first, again, "drawing from a copy must not advance the original")
}

func TestStreamKnownSequence(t *testing.T) {
	// xorshift32 (13, 17, 5) from seed 1.
	s := Seed(1)
	want := []uint32{270369, 67634689, 2647435461}
	for i, w := range want {
		var got uint32
		got, s = s.Next()
		assert.Equal(t, w, got, "draw %d", i)
	}
}

func TestZeroSeedDoesNotStick(t *testing.T) {
	s := Seed(0)
	for i := 0; i < 100; i++ {
		var v uint32
		v, s = s.Next()
		require.NotZero(t, v)
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a, _ := Seed(1).Next()
	b, _ := Seed(2).Next()
	assert.NotEqual(t, a, b)
}

func TestNext01Range(t *testing.T) {
	s := Seed(12345)
	for i := 0; i < 10000; i++ {
		var f float64
		f, s = s.Next01()
		require.GreaterOrEqual(t, f, 0.0)
		require.Less(t, f, 1.0)
	}
}
