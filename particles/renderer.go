package particles

import (
	"sync/atomic"
)

// DrawArgs mirrors an indirect draw record. Only VertexCount is written by the
// particle side; it is accessed atomically so the render path may read it at any time.
type DrawArgs struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// Count loads the shared vertex count.
func (d *DrawArgs) Count() uint32 { return atomic.LoadUint32(&d.VertexCount) }

// SetCount publishes a new vertex count.
func (d *DrawArgs) SetCount(n uint32) { atomic.StoreUint32(&d.VertexCount, n) }

// Renderer is the contract the particle core needs from its rendering collaborator.
//
// Vertices must return the same backing array of exactly Capacity() records for the
// lifetime of the renderer; it is never resized or moved while engines write to it.
// Each slot is written whole by the simulation side only. A render-side reader may see
// a record one frame stale, never a record outside the buffer.
type Renderer interface {
	Capacity() int
	Vertices() []ParticleVertex
	DrawCommand() *DrawArgs
	Valid() bool
}

// HostBuffer is a Renderer backed by plain memory. It serves headless runs and tests and
// is the staging mirror the GPU pass uploads from.
type HostBuffer struct {
	vertices []ParticleVertex
	draw     DrawArgs
	valid    atomic.Bool
}

// NewHostBuffer allocates a buffer of capacity records with every slot free.
func NewHostBuffer(capacity int) *HostBuffer {
	if capacity < 0 {
		capacity = 0
	}
	b := &HostBuffer{
		vertices: make([]ParticleVertex, capacity),
		draw:     DrawArgs{InstanceCount: 1},
	}
	for i := range b.vertices {
		b.vertices[i].MarkFree()
	}
	b.valid.Store(true)
	return b
}

func (b *HostBuffer) Capacity() int              { return len(b.vertices) }
func (b *HostBuffer) Vertices() []ParticleVertex { return b.vertices }
func (b *HostBuffer) DrawCommand() *DrawArgs     { return &b.draw }
func (b *HostBuffer) Valid() bool                { return b.valid.Load() }

// Release marks the buffer torn down. Pools bound to it refuse further work.
func (b *HostBuffer) Release() {
	b.valid.Store(false)
}

// Visible returns a copy of the records the render path would draw this frame:
// the first Count() slots, skipping sentinel holes.
func (b *HostBuffer) Visible() []ParticleVertex {
	n := int(b.draw.Count())
	if n > len(b.vertices) {
		n = len(b.vertices)
	}
	out := make([]ParticleVertex, 0, n)
	for _, v := range b.vertices[:n] {
		if !v.IsFree() {
			out = append(out, v)
		}
	}
	return out
}
