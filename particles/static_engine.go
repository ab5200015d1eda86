package particles

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handle identifies one particle spawned by a StaticEngine. The zero value (uuid.Nil)
// never names a live particle.
type Handle = uuid.UUID

// StaticEngine is the pool-driven strategy: callers spawn and kill individual particles
// and the engine tracks which slots it handed out. It keeps its own handle table, distinct
// from the pool's bookkeeping, so handles stay meaningful to callers.
//
// Spawn, Kill, KillAll and Stop are no-ops until Start. Like Pool, StaticEngine expects a
// single controlling goroutine.
type StaticEngine struct {
	pool    *Pool
	handles map[Handle]Slot
	running atomic.Bool
	log     Logger
}

// NewStaticEngine returns an engine with no pool bound.
func NewStaticEngine(log Logger) *StaticEngine {
	if log == nil {
		log = nopLogger{}
	}
	return &StaticEngine{
		handles: make(map[Handle]Slot),
		log:     log,
	}
}

// NewStaticEngineFor returns an engine bound to pool.
func NewStaticEngineFor(pool *Pool, log Logger) (*StaticEngine, error) {
	e := NewStaticEngine(log)
	if err := e.Init(pool); err != nil {
		return nil, err
	}
	return e, nil
}

// Init binds the engine to pool. Rebinding a running engine is refused.
func (e *StaticEngine) Init(pool *Pool) error {
	if e.running.Load() {
		return fmt.Errorf("init static particle engine: %w", ErrEngineRunning)
	}
	if pool == nil {
		return fmt.Errorf("init static particle engine: nil pool: %w", ErrNotInitialized)
	}
	e.pool = pool
	return nil
}

// Start marks the engine running. It fails if no pool is bound.
func (e *StaticEngine) Start() error {
	if e.pool == nil {
		return fmt.Errorf("start static particle engine: %w", ErrNotInitialized)
	}
	if !e.running.Swap(true) {
		e.log.Infof("static particle engine started: pool capacity %d", e.pool.Capacity())
	}
	return nil
}

// Stop frees every slot this engine still owns and stops accepting operations. If a slot
// cannot be freed the engine keeps running with its remaining handles.
func (e *StaticEngine) Stop() error {
	if e.pool == nil {
		return fmt.Errorf("stop static particle engine: %w", ErrNotInitialized)
	}
	if !e.running.Load() {
		return nil
	}
	n := len(e.handles)
	// a failed release leaves the engine running so Stop can be retried
	if err := e.killAll(); err != nil {
		return fmt.Errorf("stop static particle engine: %w", err)
	}
	e.running.Store(false)
	e.log.Infof("static particle engine stopped: released %d particles", n)
	return nil
}

// Close stops the engine. An engine that was never bound has nothing to release.
func (e *StaticEngine) Close() error {
	if e.pool == nil {
		return nil
	}
	return e.Stop()
}

// Spawn allocates a slot, writes v into it and returns its handle. When the pool is full
// it returns ErrPoolExhausted and the spawn is dropped.
func (e *StaticEngine) Spawn(v ParticleVertex) (Handle, error) {
	if !e.running.Load() {
		return uuid.Nil, nil
	}
	slot, err := e.pool.Allocate()
	if err != nil {
		return uuid.Nil, err
	}
	if slot == NoSlot {
		e.log.Debugf("static particle engine: pool exhausted at %d particles", e.pool.Count())
		return uuid.Nil, ErrPoolExhausted
	}

	if err := e.pool.Write(slot, v); err != nil {
		return uuid.Nil, err
	}

	h := uuid.New()
	e.handles[h] = slot
	return h, nil
}

// Kill frees the particle behind h. Unknown handles are ignored.
func (e *StaticEngine) Kill(h Handle) error {
	if !e.running.Load() {
		return nil
	}
	slot, ok := e.handles[h]
	if !ok {
		return nil
	}
	if err := e.pool.Free(slot); err != nil {
		return err
	}
	delete(e.handles, h)
	return nil
}

// KillAll frees every particle this engine owns without stopping it.
func (e *StaticEngine) KillAll() error {
	if !e.running.Load() {
		return nil
	}
	return e.killAll()
}

func (e *StaticEngine) killAll() error {
	for h, slot := range e.handles {
		if err := e.pool.Free(slot); err != nil {
			return err
		}
		delete(e.handles, h)
	}
	return nil
}

// Update overwrites the vertex of a live particle. It reports false for unknown handles
// and before Start, and fails like Pool.Write once the pool or its renderer is gone.
func (e *StaticEngine) Update(h Handle, v ParticleVertex) (bool, error) {
	if !e.running.Load() {
		return false, nil
	}
	slot, ok := e.handles[h]
	if !ok {
		return false, nil
	}
	if err := e.pool.Write(slot, v); err != nil {
		return false, fmt.Errorf("update particle: %w", err)
	}
	return true, nil
}

// Slot returns the pool slot behind h.
func (e *StaticEngine) Slot(h Handle) (Slot, bool) {
	slot, ok := e.handles[h]
	return slot, ok
}

// Handles returns the live handles ordered by slot.
func (e *StaticEngine) Handles() []Handle {
	out := make([]Handle, 0, len(e.handles))
	for h := range e.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return e.handles[out[i]] < e.handles[out[j]] })
	return out
}

func (e *StaticEngine) Count() int    { return len(e.handles) }
func (e *StaticEngine) Running() bool { return e.running.Load() }
func (e *StaticEngine) Pool() *Pool   { return e.pool }
