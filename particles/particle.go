// Package particles implements the particle lifecycle core: the simulation record, the
// slot allocator over a renderer-owned buffer, and the two engine strategies that feed it.
package particles

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Clock returns the current monotonic time. Engines and particles take one so tests
// can drive time by hand.
type Clock func() time.Time

// Particle is the simulation-side record used by the bulk engine. It is owned by the
// simulation goroutine and never shared.
type Particle struct {
	vertex   ParticleVertex
	velocity mgl32.Vec3
	ttl      time.Duration
	start    time.Time
	alive    bool

	now Clock
}

// NewParticle returns a dead particle that reads time from clock.
// A nil clock means time.Now.
func NewParticle(clock Clock) Particle {
	return Particle{now: clock}
}

func (p *Particle) clockNow() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// Set (re)spawns the particle and restarts its lifetime.
func (p *Particle) Set(pos mgl32.Vec3, color mgl32.Vec4, size float32, velocity mgl32.Vec3, ttl time.Duration) {
	p.vertex.Pos = pos
	p.vertex.Color = color
	p.vertex.Size = size
	p.velocity = velocity
	p.ttl = ttl
	p.alive = true
	p.start = p.clockNow()
}

// Update advances one physics step. Expiry is measured against the clock, not the sum of dt.
// Order: expiry check, ground bounce, gravity on velocity, then position.
func (p *Particle) Update(dt time.Duration, groundLevel, gravity, bounceFactor float32) {
	if !p.alive {
		return
	}

	if p.clockNow().Sub(p.start) >= p.ttl {
		p.alive = false
		return
	}

	if p.vertex.Pos[1] < groundLevel {
		underGround := groundLevel - p.vertex.Pos[1]
		p.vertex.Pos[1] = groundLevel + underGround
		p.velocity[1] *= -bounceFactor
	}

	seconds := float32(dt.Seconds())
	p.velocity[1] -= gravity * seconds
	p.vertex.Pos = p.vertex.Pos.Add(p.velocity.Mul(seconds))
}

// Vertex projects the particle to its GPU record. Defined for dead particles too.
func (p *Particle) Vertex() ParticleVertex { return p.vertex }

func (p *Particle) Velocity() mgl32.Vec3 { return p.velocity }
func (p *Particle) TTL() time.Duration   { return p.ttl }
func (p *Particle) Alive() bool          { return p.alive }
