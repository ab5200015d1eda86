package particles

import (
	"container/heap"
	"fmt"
)

// Slot addresses one record of the renderer's particle buffer.
type Slot int

// NoSlot is returned by Allocate when the pool is exhausted.
const NoSlot Slot = -1

// Pool hands out slots of a renderer-owned buffer. It owns no vertex memory; it only
// tracks which slots are live.
//
// Invariants while initialized: free and allocated partition [0, capacity), count equals
// the number of allocated slots, and the renderer's draw count equals the highest
// allocated index + 1 (0 when empty). Every free slot holds the NaN sentinel position,
// because the render path has no other way to tell free from allocated.
//
// Pool is not safe for concurrent use; spawn/kill are expected from one controlling
// goroutine.
type Pool struct {
	vertices  []ParticleVertex
	draw      *DrawArgs
	renderer  Renderer
	capacity  int
	count     int
	free      freeHeap
	allocated *allocatedSet

	initialized bool
}

// NewPool returns an unbound pool. Call Init before use.
func NewPool() *Pool {
	return &Pool{}
}

// NewPoolFor returns a pool bound to renderer.
func NewPoolFor(renderer Renderer) (*Pool, error) {
	p := NewPool()
	if err := p.Init(renderer); err != nil {
		return nil, err
	}
	return p, nil
}

// Init binds the pool to renderer, marks every slot free and resets the draw count.
func (p *Pool) Init(renderer Renderer) error {
	if p.initialized {
		return fmt.Errorf("init particle pool: %w", ErrAlreadyInitialized)
	}
	if renderer == nil || !renderer.Valid() {
		return fmt.Errorf("init particle pool: %w", ErrRendererInvalid)
	}
	vertices := renderer.Vertices()
	if len(vertices) != renderer.Capacity() {
		return fmt.Errorf("init particle pool: buffer holds %d records, capacity is %d: %w",
			len(vertices), renderer.Capacity(), ErrRendererInvalid)
	}

	p.renderer = renderer
	p.vertices = vertices
	p.capacity = len(vertices)
	p.count = 0
	p.draw = renderer.DrawCommand()
	p.draw.SetCount(0)
	p.clearMemory()
	p.initialized = true
	return nil
}

func (p *Pool) clearMemory() {
	p.free = make(freeHeap, p.capacity)
	for i := range p.vertices {
		p.vertices[i].MarkFree()
		p.free[i] = i
	}
	heap.Init(&p.free)
	p.allocated = newAllocatedSet(p.capacity)
}

// Clear unbinds the pool. The draw count is forced to 0 first so a torn-down pool never
// makes the renderer read stale slots.
func (p *Pool) Clear() {
	if !p.initialized {
		return
	}
	p.draw.SetCount(0)
	p.vertices = nil
	p.draw = nil
	p.renderer = nil
	p.capacity = 0
	p.count = 0
	p.free = nil
	p.allocated = nil
	p.initialized = false
}

// Close is Clear for use with defer.
func (p *Pool) Close() error {
	p.Clear()
	return nil
}

func (p *Pool) check(op string) error {
	if !p.initialized {
		return fmt.Errorf("%s particle: %w", op, ErrNotInitialized)
	}
	if !p.renderer.Valid() {
		return fmt.Errorf("%s particle: %w", op, ErrRendererInvalid)
	}
	return nil
}

// Allocate takes the smallest free slot. It returns NoSlot with a nil error when the pool
// is exhausted; errors are reserved for precondition violations.
func (p *Pool) Allocate() (Slot, error) {
	if err := p.check("allocate"); err != nil {
		return NoSlot, err
	}
	if len(p.free) == 0 {
		return NoSlot, nil
	}

	idx := heap.Pop(&p.free).(int)
	p.allocated.insert(idx)
	p.publishCount()
	p.count++
	return Slot(idx), nil
}

// Free releases slot. NoSlot is ignored. The sentinel is written before the allocation
// check, so a double free leaves the GPU-visible state correct and is otherwise a no-op.
func (p *Pool) Free(slot Slot) error {
	if err := p.check("free"); err != nil {
		return err
	}
	if slot == NoSlot {
		return nil
	}
	if slot < 0 || int(slot) >= p.capacity {
		return fmt.Errorf("free particle: slot %d outside [0, %d): %w", slot, p.capacity, ErrSlotOutOfRange)
	}

	p.vertices[slot].MarkFree()

	if !p.allocated.remove(int(slot)) {
		return nil
	}
	heap.Push(&p.free, int(slot))
	p.publishCount()
	p.count--
	return nil
}

// publishCount sets the draw count to the high-water mark + 1.
func (p *Pool) publishCount() {
	p.draw.SetCount(uint32(p.allocated.max() + 1))
}

// Write stores v in an allocated slot. Free slots keep their sentinel, so writing one is
// refused like any other precondition violation.
func (p *Pool) Write(slot Slot, v ParticleVertex) error {
	if err := p.check("write"); err != nil {
		return err
	}
	if slot < 0 || int(slot) >= p.capacity {
		return fmt.Errorf("write particle: slot %d outside [0, %d): %w", slot, p.capacity, ErrSlotOutOfRange)
	}
	if !p.allocated.contains(int(slot)) {
		return fmt.Errorf("write particle: slot %d: %w", slot, ErrSlotNotAllocated)
	}
	p.vertices[slot] = v
	return nil
}

// IsAllocated never fails; NoSlot, out-of-range slots and an unbound pool all report false.
func (p *Pool) IsAllocated(slot Slot) bool {
	if !p.initialized || slot == NoSlot {
		return false
	}
	return p.allocated.contains(int(slot))
}

// Allocated returns the allocated slots in ascending order.
func (p *Pool) Allocated() []Slot {
	if !p.initialized {
		return nil
	}
	idx := p.allocated.sorted()
	out := make([]Slot, len(idx))
	for i, v := range idx {
		out[i] = Slot(v)
	}
	return out
}

// HighWater returns the highest allocated slot, or NoSlot when empty.
func (p *Pool) HighWater() Slot {
	if !p.initialized {
		return NoSlot
	}
	return Slot(p.allocated.max())
}

func (p *Pool) Capacity() int     { return p.capacity }
func (p *Pool) Count() int        { return p.count }
func (p *Pool) Initialized() bool { return p.initialized }
func (p *Pool) Empty() bool       { return p.count == 0 }
func (p *Pool) Full() bool        { return p.initialized && len(p.free) == 0 }
