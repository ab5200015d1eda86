package particles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSampler_Deterministic(t *testing.T) {
	a, b := NewSampler(7), NewSampler(7)
	for i := 0; i < 32; i++ {
		assert.Equal(t, a.Normal(0, 1), b.Normal(0, 1))
		assert.Equal(t, a.Uniform(-1, 1), b.Uniform(-1, 1))
		assert.Equal(t, a.Duration(time.Second, 2*time.Second), b.Duration(time.Second, 2*time.Second))
	}
}

func TestSampler_Bounds(t *testing.T) {
	s := NewSampler(1)
	for i := 0; i < 1000; i++ {
		u := s.Uniform(0.7, 0.9)
		assert.GreaterOrEqual(t, u, float32(0.7))
		assert.LessOrEqual(t, u, float32(0.9))

		d := s.Duration(5000*time.Millisecond, 6000*time.Millisecond)
		assert.GreaterOrEqual(t, d, 5000*time.Millisecond)
		assert.LessOrEqual(t, d, 6000*time.Millisecond)
		assert.Zero(t, d%time.Millisecond)
	}
}

func TestSampler_DegenerateInputs(t *testing.T) {
	s := NewSampler(3)
	assert.Equal(t, float32(5), s.Normal(5, 0))
	assert.Equal(t, float32(5), s.Normal(5, -1))
	assert.Equal(t, float32(0.4), s.Uniform(0.4, 0.4))
	assert.Equal(t, time.Second, s.Duration(time.Second, time.Second))

	u := s.Uniform(2, 1)
	assert.GreaterOrEqual(t, u, float32(1))
	assert.LessOrEqual(t, u, float32(2))
}

func TestSampler_NormalMean(t *testing.T) {
	s := NewSampler(11)
	const n = 5000
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(s.Normal(5, 2))
	}
	assert.InDelta(t, 5.0, sum/n, 0.15)
}
