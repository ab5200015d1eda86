package gpu

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/fountain/particles"
	"github.com/gekko3d/fountain/rt/core"
	"github.com/gekko3d/fountain/rt/shaders"
)

// QuadVertices is the number of vertices the particle shader expands each record into.
const QuadVertices = 6

// CameraUniformSize is the byte size of core.CameraUniform.
const CameraUniformSize = uint64(unsafe.Sizeof(core.CameraUniform{}))

// ParticleRenderPass draws every particle slot as an instanced billboard quad.
//
// The simulation writes into a host mirror; Upload copies the mirror and the current
// vertex count to the GPU once per frame. Free slots carry a NaN position and the
// shader drops them, so holes below the count cost nothing but a discarded quad.
type ParticleRenderPass struct {
	Pipeline       *wgpu.RenderPipeline
	VertexBuffer   *wgpu.Buffer
	IndirectBuffer *wgpu.Buffer
	Device         *wgpu.Device

	mirror *particles.HostBuffer
}

var _ particles.Renderer = (*ParticleRenderPass)(nil)

func NewParticleRenderPass(device *wgpu.Device, format wgpu.TextureFormat, capacity int) (*ParticleRenderPass, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("particle pass capacity must be positive, got %d", capacity)
	}

	shaderModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "ParticleShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ParticlesWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shaderModule.Release()

	bgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "ParticleCameraBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: CameraUniformSize,
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "ParticlePipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{ParticleVertexLayout()},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shaderModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
						Alpha: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
					},
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}

	mirror := particles.NewHostBuffer(capacity)
	vb, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ParticleVertexBuffer",
		Size:  uint64(capacity) * particles.VertexStride,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	ib, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ParticleIndirectBuffer",
		Size:  16,
		Usage: wgpu.BufferUsageIndirect | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vb.Release()
		return nil, err
	}

	return &ParticleRenderPass{
		Pipeline:       pipeline,
		VertexBuffer:   vb,
		IndirectBuffer: ib,
		Device:         device,
		mirror:         mirror,
	}, nil
}

func (p *ParticleRenderPass) Capacity() int                        { return p.mirror.Capacity() }
func (p *ParticleRenderPass) Vertices() []particles.ParticleVertex { return p.mirror.Vertices() }
func (p *ParticleRenderPass) DrawCommand() *particles.DrawArgs     { return p.mirror.DrawCommand() }
func (p *ParticleRenderPass) Valid() bool                          { return p.mirror.Valid() }

// Upload pushes the mirror and the indirect record for this frame.
func (p *ParticleRenderPass) Upload(queue *wgpu.Queue) {
	if !p.Valid() {
		return
	}
	queue.WriteBuffer(p.VertexBuffer, 0, particles.VertexBytes(p.mirror.Vertices()))
	queue.WriteBuffer(p.IndirectBuffer, 0, IndirectRecord(p.mirror.DrawCommand()))
}

func (p *ParticleRenderPass) Draw(pass *wgpu.RenderPassEncoder, cameraBindGroup *wgpu.BindGroup) {
	if !p.Valid() {
		return
	}
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, cameraBindGroup, nil)
	pass.SetVertexBuffer(0, p.VertexBuffer, 0, p.VertexBuffer.GetSize())
	pass.DrawIndirect(p.IndirectBuffer, 0)
}

func (p *ParticleRenderPass) CreateBindGroup(cameraBuffer *wgpu.Buffer) (*wgpu.BindGroup, error) {
	return p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "ParticleCameraBG",
		Layout: p.Pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  cameraBuffer,
				Size:    CameraUniformSize,
			},
		},
	})
}

// Release invalidates the pass before freeing GPU memory. Engines still bound to it see
// an invalid renderer and stop writing.
func (p *ParticleRenderPass) Release() {
	if !p.mirror.Valid() {
		return
	}
	p.mirror.Release()
	p.VertexBuffer.Release()
	p.IndirectBuffer.Release()
	p.Pipeline.Release()
}

// IndirectRecord encodes the draw as {vertices per quad, instances, 0, 0}. The shared
// vertex count is the number of slots to draw, one instance each.
func IndirectRecord(d *particles.DrawArgs) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], QuadVertices)
	binary.LittleEndian.PutUint32(buf[4:], d.Count())
	return buf
}

// ParticleVertexLayout describes ParticleVertex as a per-instance buffer.
func ParticleVertexLayout() wgpu.VertexBufferLayout {
	attrs := particles.VertexAttributes()
	out := make([]wgpu.VertexAttribute, len(attrs))
	for i, a := range attrs {
		out[i] = wgpu.VertexAttribute{
			Format:         vertexFormat(a.Format),
			Offset:         a.Offset,
			ShaderLocation: a.Location,
		}
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: particles.VertexStride,
		StepMode:    wgpu.VertexStepModeInstance,
		Attributes:  out,
	}
}

func vertexFormat(f particles.AttributeFormat) wgpu.VertexFormat {
	switch f {
	case particles.Float32x3:
		return wgpu.VertexFormatFloat32x3
	case particles.Float32x4:
		return wgpu.VertexFormatFloat32x4
	default:
		return wgpu.VertexFormatFloat32
	}
}
