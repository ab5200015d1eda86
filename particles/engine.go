package particles

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// EngineConfig parameterizes the bulk engine.
type EngineConfig struct {
	Count         int // 0 means the renderer's full capacity
	SpawnPos      mgl32.Vec3
	Gravity       float32 // positive, pulls towards -Y
	MinBounce     float32
	MaxBounce     float32
	VelocityMean  mgl32.Vec3
	VelocitySigma mgl32.Vec3
	MinSize       float32
	MaxSize       float32
	GroundLevel   float32
	MinTTL        time.Duration
	MaxTTL        time.Duration
	TickInterval  time.Duration // 0 runs the loop free
	Seed          uint64        // 0 picks a time-based seed
}

// EngineStats is a snapshot of the simulation counters.
type EngineStats struct {
	Iterations uint64
	Respawns   uint64
	Alive      int
	Count      int
}

// Engine is the continuous-respawn strategy. It owns Count particles and overwrites
// slot i of the renderer buffer on every iteration, dead or alive. It bypasses the Pool:
// the whole range is always drawn, so it must not share a renderer with a Pool.
type Engine struct {
	cfg   atomic.Pointer[EngineConfig]
	cfgMu sync.Mutex // serializes setters; the loop reads cfg lock-free

	particles []Particle
	renderer  Renderer
	vertices  []ParticleVertex
	sampler   *Sampler
	clock     Clock
	log       Logger
	loop      loop

	initialized bool

	iterations atomic.Uint64
	respawns   atomic.Uint64
	alive      atomic.Int64

	invalidWarned bool
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock sets the time source for the loop and every particle.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger routes engine log lines to l.
func WithLogger(l Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithSampler replaces the seeded sampler built from EngineConfig.Seed.
func WithSampler(s *Sampler) EngineOption {
	return func(e *Engine) { e.sampler = s }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{clock: time.Now, log: nopLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

// Init binds the engine to renderer. All owned slots start dead and carry the sentinel,
// and the draw count is pinned to the particle count.
func (e *Engine) Init(cfg EngineConfig, renderer Renderer) error {
	if e.loop.isRunning() {
		return fmt.Errorf("init particle engine: %w", ErrEngineRunning)
	}
	if renderer == nil || !renderer.Valid() {
		return fmt.Errorf("init particle engine: %w", ErrRendererInvalid)
	}
	n := cfg.Count
	if n <= 0 {
		n = renderer.Capacity()
	}
	if n > renderer.Capacity() || n > len(renderer.Vertices()) {
		return fmt.Errorf("init particle engine: %d particles, capacity %d: %w", n, renderer.Capacity(), ErrCapacityExceeded)
	}
	cfg.Count = n

	e.renderer = renderer
	e.vertices = renderer.Vertices()[:n]
	e.particles = make([]Particle, n)
	for i := range e.particles {
		e.particles[i] = NewParticle(e.clock)
		e.vertices[i].MarkFree()
	}
	if e.sampler == nil {
		e.sampler = NewSampler(cfg.Seed)
	}
	e.cfg.Store(&cfg)
	renderer.DrawCommand().SetCount(uint32(n))

	e.iterations.Store(0)
	e.respawns.Store(0)
	e.alive.Store(0)
	e.invalidWarned = false
	e.initialized = true
	return nil
}

// Start launches the simulation goroutine after delay. Starting a running engine is a no-op.
func (e *Engine) Start(delay time.Duration) error {
	if !e.initialized {
		return fmt.Errorf("start particle engine: %w", ErrNotInitialized)
	}
	if e.loop.start(delay, e.Config().TickInterval, e.clock, e.step) {
		e.log.Infof("particle engine started: %d particles, delay %s", len(e.particles), delay)
	}
	return nil
}

// Stop halts the loop and waits for the goroutine to exit. Safe to call at any time.
func (e *Engine) Stop() {
	if e.loop.halt() {
		e.log.Infof("particle engine stopped after %d iterations", e.iterations.Load())
	}
}

// Close stops the engine.
func (e *Engine) Close() error {
	e.Stop()
	return nil
}

func (e *Engine) Running() bool { return e.loop.isRunning() }

// Config returns the current configuration.
func (e *Engine) Config() EngineConfig {
	if c := e.cfg.Load(); c != nil {
		return *c
	}
	return EngineConfig{}
}

func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Iterations: e.iterations.Load(),
		Respawns:   e.respawns.Load(),
		Alive:      int(e.alive.Load()),
		Count:      len(e.particles),
	}
}

// step runs one iteration over every particle in index order.
func (e *Engine) step(dt time.Duration) {
	if !e.renderer.Valid() {
		if !e.invalidWarned {
			e.log.Warnf("particle engine: renderer no longer valid, skipping writes")
			e.invalidWarned = true
		}
		return
	}
	cfg := e.cfg.Load()

	alive := 0
	for i := range e.particles {
		p := &e.particles[i]
		if !p.Alive() {
			e.respawn(p, cfg)
			e.respawns.Add(1)
		} else {
			bounce := e.sampler.Uniform(cfg.MinBounce, cfg.MaxBounce)
			p.Update(dt, cfg.GroundLevel, cfg.Gravity, bounce)
		}
		if p.Alive() {
			alive++
		}
		e.vertices[i] = p.Vertex()
	}

	e.alive.Store(int64(alive))
	e.iterations.Add(1)
}

func (e *Engine) respawn(p *Particle, cfg *EngineConfig) {
	s := e.sampler
	velocity := mgl32.Vec3{
		s.Normal(cfg.VelocityMean[0], cfg.VelocitySigma[0]),
		s.Normal(cfg.VelocityMean[1], cfg.VelocitySigma[1]),
		s.Normal(cfg.VelocityMean[2], cfg.VelocitySigma[2]),
	}
	color := mgl32.Vec4{s.Uniform(0, 1), s.Uniform(0, 1), s.Uniform(0, 1), 1}
	size := s.Uniform(cfg.MinSize, cfg.MaxSize)
	ttl := s.Duration(cfg.MinTTL, cfg.MaxTTL)
	p.Set(cfg.SpawnPos, color, size, velocity, ttl)
}

// update swaps in a modified copy of the config.
func (e *Engine) update(fn func(c *EngineConfig)) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	var next EngineConfig
	if cur := e.cfg.Load(); cur != nil {
		next = *cur
	}
	fn(&next)
	e.cfg.Store(&next)
}

func (e *Engine) SetSpawnPos(pos mgl32.Vec3) {
	e.update(func(c *EngineConfig) { c.SpawnPos = pos })
}

func (e *Engine) SetGravity(gravity float32) {
	e.update(func(c *EngineConfig) { c.Gravity = gravity })
}

func (e *Engine) SetBounceFactor(min, max float32) {
	e.update(func(c *EngineConfig) { c.MinBounce, c.MaxBounce = min, max })
}

func (e *Engine) SetVelocity(mean, sigma mgl32.Vec3) {
	e.update(func(c *EngineConfig) { c.VelocityMean, c.VelocitySigma = mean, sigma })
}

func (e *Engine) SetSize(min, max float32) {
	e.update(func(c *EngineConfig) { c.MinSize, c.MaxSize = min, max })
}

func (e *Engine) SetGroundLevel(level float32) {
	e.update(func(c *EngineConfig) { c.GroundLevel = level })
}

func (e *Engine) SetTTL(min, max time.Duration) {
	e.update(func(c *EngineConfig) { c.MinTTL, c.MaxTTL = min, max })
}

// Apply copies every live-tunable field of cfg. Count, TickInterval and Seed only take
// effect on the next Init.
func (e *Engine) Apply(cfg EngineConfig) {
	e.update(func(c *EngineConfig) {
		c.SpawnPos = cfg.SpawnPos
		c.Gravity = cfg.Gravity
		c.MinBounce, c.MaxBounce = cfg.MinBounce, cfg.MaxBounce
		c.VelocityMean, c.VelocitySigma = cfg.VelocityMean, cfg.VelocitySigma
		c.MinSize, c.MaxSize = cfg.MinSize, cfg.MaxSize
		c.GroundLevel = cfg.GroundLevel
		c.MinTTL, c.MaxTTL = cfg.MinTTL, cfg.MaxTTL
	})
}
