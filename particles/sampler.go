package particles

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws the random attributes of a respawned particle. An engine owns its sampler
// and uses it from the simulation goroutine only.
type Sampler struct {
	src *rand.PCG
	rng *rand.Rand
}

// NewSampler returns a sampler seeded with seed. Seed 0 picks a time-based seed.
func NewSampler(seed uint64) *Sampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Sampler{src: src, rng: rand.New(src)}
}

// Normal draws from N(mean, sigma).
func (s *Sampler) Normal(mean, sigma float32) float32 {
	if sigma <= 0 {
		return mean
	}
	d := distuv.Normal{Mu: float64(mean), Sigma: float64(sigma), Src: s.src}
	return float32(d.Rand())
}

// Uniform draws from [min, max]. Swapped bounds are tolerated.
func (s *Sampler) Uniform(min, max float32) float32 {
	if max < min {
		min, max = max, min
	}
	if max == min {
		return min
	}
	d := distuv.Uniform{Min: float64(min), Max: float64(max), Src: s.src}
	return float32(d.Rand())
}

// Duration draws a whole number of milliseconds uniformly from [min, max].
func (s *Sampler) Duration(min, max time.Duration) time.Duration {
	lo, hi := min.Milliseconds(), max.Milliseconds()
	if hi < lo {
		lo, hi = hi, lo
	}
	return time.Duration(lo+s.rng.Int64N(hi-lo+1)) * time.Millisecond
}
