package particles

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestParticle_ZeroValueIsDead(t *testing.T) {
	p := NewParticle(nil)
	assert.False(t, p.Alive())

	// Update on a dead particle does nothing.
	p.Update(time.Second, 0, 9.81, 0.8)
	assert.Equal(t, ParticleVertex{}, p.Vertex())
}

func TestParticle_SetSpawns(t *testing.T) {
	clock := newFakeClock()
	p := NewParticle(clock.Now)
	p.Set(mgl32.Vec3{1, 2, 3}, mgl32.Vec4{0.1, 0.2, 0.3, 1}, 0.5, mgl32.Vec3{0, 5, 0}, 100*time.Millisecond)

	assert.True(t, p.Alive())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, p.Vertex().Pos)
	assert.Equal(t, mgl32.Vec4{0.1, 0.2, 0.3, 1}, p.Vertex().Color)
	assert.Equal(t, float32(0.5), p.Vertex().Size)
	assert.Equal(t, mgl32.Vec3{0, 5, 0}, p.Velocity())
	assert.Equal(t, 100*time.Millisecond, p.TTL())
}

// Scenario C: expiry is measured from the spawn time.
func TestParticle_ExpiresAtTTL(t *testing.T) {
	clock := newFakeClock()
	p := NewParticle(clock.Now)
	p.Set(mgl32.Vec3{0, 10, 0}, mgl32.Vec4{1, 1, 1, 1}, 0.1, mgl32.Vec3{}, 100*time.Millisecond)

	for i := 0; i < 9; i++ {
		clock.Advance(11 * time.Millisecond)
		p.Update(11*time.Millisecond, 0, 9.81, 0.8)
	}
	// 99ms elapsed
	assert.True(t, p.Alive())

	clock.Advance(time.Millisecond)
	p.Update(time.Millisecond, 0, 9.81, 0.8)
	assert.False(t, p.Alive())
}

// Scenario D: reflection and damping happen before integration.
func TestParticle_BounceReflectsAndDamps(t *testing.T) {
	clock := newFakeClock()
	p := NewParticle(clock.Now)
	p.Set(mgl32.Vec3{0, -1, 0}, mgl32.Vec4{1, 1, 1, 1}, 0.1, mgl32.Vec3{0, -5, 0}, time.Hour)

	p.Update(0, 0, 9.81, 0.8)

	assert.InDelta(t, 1.0, p.Vertex().Pos.Y(), 1e-6)
	assert.InDelta(t, 4.0, p.Velocity().Y(), 1e-6)
}

func TestParticle_BounceThenIntegrate(t *testing.T) {
	clock := newFakeClock()
	p := NewParticle(clock.Now)
	p.Set(mgl32.Vec3{2, -1, 3}, mgl32.Vec4{1, 1, 1, 1}, 0.1, mgl32.Vec3{1, -5, -1}, time.Hour)

	p.Update(100*time.Millisecond, 0, 10, 0.8)

	// vy: 4 - 10*0.1 = 3; y: 1 + 3*0.1 = 1.3
	assert.InDelta(t, 3.0, p.Velocity().Y(), 1e-5)
	assert.InDelta(t, 1.3, p.Vertex().Pos.Y(), 1e-5)
	assert.InDelta(t, 2.1, p.Vertex().Pos.X(), 1e-5)
	assert.InDelta(t, 2.9, p.Vertex().Pos.Z(), 1e-5)
}

func TestParticle_GravityWithoutBounce(t *testing.T) {
	clock := newFakeClock()
	p := NewParticle(clock.Now)
	p.Set(mgl32.Vec3{0, 5, 0}, mgl32.Vec4{1, 1, 1, 1}, 0.1, mgl32.Vec3{0, 0, 0}, time.Hour)

	p.Update(500*time.Millisecond, 0, 10, 0.8)

	assert.InDelta(t, -5.0, p.Velocity().Y(), 1e-5)
	assert.InDelta(t, 2.5, p.Vertex().Pos.Y(), 1e-5)
}

func TestParticle_DeadVertexStillReadable(t *testing.T) {
	clock := newFakeClock()
	p := NewParticle(clock.Now)
	p.Set(mgl32.Vec3{4, 4, 4}, mgl32.Vec4{1, 1, 1, 1}, 0.1, mgl32.Vec3{}, 10*time.Millisecond)
	clock.Advance(20 * time.Millisecond)
	p.Update(20*time.Millisecond, 0, 9.81, 0.8)

	assert.False(t, p.Alive())
	assert.Equal(t, mgl32.Vec3{4, 4, 4}, p.Vertex().Pos)
}
