package rng

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleInCircleStaysInside(t *testing.T) {
	for _, radius := range []float64{0.001, 0.02, 0.2, 0.4, 1, 10} {
		s := Seed(99)
		for i := 0; i < 5000; i++ {
			var dx, dy float64
			dx, dy, s = SampleInCircle(s, radius)
			require.LessOrEqual(t, math.Hypot(dx, dy), radius+1e-12, "radius %v draw %d", radius, i)
		}
	}
}

func TestSampleInCircleDegenerateRadius(t *testing.T) {
	for _, radius := range []float64{0, -1, math.NaN()} {
		s := Seed(5)
		dx, dy, next := SampleInCircle(s, radius)
		assert.Zero(t, dx)
		assert.Zero(t, dy)
		assert.Equal(t, s, next, "no draws consumed for radius %v", radius)
	}
}

func TestSampleInCircleIsDeterministic(t *testing.T) {
	ax, ay, _ := SampleInCircle(Seed(2024), 0.3)
	bx, by, _ := SampleInCircle(Seed(2024), 0.3)
	assert.Equal(t, ax, bx)
	assert.Equal(t, ay, by)
}

// Area-uniform sampling means norm² is uniform on [0, r²]. Bucket the
// normalized squared norms and check every bucket is close to n/buckets.
func TestSampleInCircleIsAreaUniform(t *testing.T) {
	const (
		n       = 200000
		buckets = 10
		radius  = 0.25
	)
	var counts [buckets]int
	s := Seed(0xC0FFEE)
	for i := 0; i < n; i++ {
		var dx, dy float64
		dx, dy, s = SampleInCircle(s, radius)
		frac := (dx*dx + dy*dy) / (radius * radius)
		idx := int(frac * buckets)
		if idx == buckets {
			idx--
		}
		counts[idx]++
	}

	expected := float64(n) / buckets
	for i, c := range counts {
		assert.InDelta(t, expected, float64(c), expected*0.05, "bucket %d", i)
	}

	// A radius-uniform sampler would put ~31.6% of draws in the first bucket.
	assert.Less(t, float64(counts[0]), expected*1.2)
}
