package particles

import (
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// ParticleVertex is the only record the render path reads.
// Layout: pos float32x3 @0, color float32x4 @12, size float32 @28 (32 bytes).
type ParticleVertex struct {
	Pos   mgl32.Vec3
	Color mgl32.Vec4
	Size  float32
}

// VertexStride is the size of one ParticleVertex in bytes.
const VertexStride = uint64(unsafe.Sizeof(ParticleVertex{}))

// AttributeFormat names the shader-side type of a vertex attribute.
type AttributeFormat int

const (
	Float32 AttributeFormat = iota
	Float32x3
	Float32x4
)

// VertexAttribute describes one field of ParticleVertex for pipeline setup.
type VertexAttribute struct {
	Location uint32
	Offset   uint64
	Format   AttributeFormat
}

// VertexAttributes returns the attribute layout of ParticleVertex in shader location order.
func VertexAttributes() []VertexAttribute {
	var v ParticleVertex
	return []VertexAttribute{
		{Location: 0, Offset: uint64(unsafe.Offsetof(v.Pos)), Format: Float32x3},
		{Location: 1, Offset: uint64(unsafe.Offsetof(v.Color)), Format: Float32x4},
		{Location: 2, Offset: uint64(unsafe.Offsetof(v.Size)), Format: Float32},
	}
}

var nan32 = float32(math.NaN())

// SentinelPos is the reserved position marking a free slot. Nothing can be drawn at NaN,
// and the particle shader discards it.
func SentinelPos() mgl32.Vec3 {
	return mgl32.Vec3{nan32, nan32, nan32}
}

// MarkFree writes the sentinel into the vertex position.
func (v *ParticleVertex) MarkFree() {
	v.Pos = SentinelPos()
}

// IsFree reports whether the vertex carries the sentinel position.
func (v ParticleVertex) IsFree() bool {
	x := v.Pos[0]
	return x != x
}

// VertexBytes reinterprets a vertex slice as raw bytes for upload. The returned slice
// aliases vs.
func VertexBytes(vs []ParticleVertex) []byte {
	if len(vs) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vs[0])), uint64(len(vs))*VertexStride)
}
