// Package app hosts the windowed viewer: a glfw window, a WebGPU device and the passes
// that draw the particle buffer and the HUD.
package app

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/fountain"
	"github.com/gekko3d/fountain/rt/core"
	"github.com/gekko3d/fountain/rt/gpu"
	"github.com/gekko3d/fountain/rt/shaders"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Camera       *core.OrbitCamera
	CameraBuffer *wgpu.Buffer
	CameraBG     *wgpu.BindGroup
	Particles    *gpu.ParticleRenderPass
	Sampler      *wgpu.Sampler

	TextRenderer     *core.TextRenderer
	TextPipeline     *wgpu.RenderPipeline
	TextAtlasView    *wgpu.TextureView
	TextBindGroup    *wgpu.BindGroup
	TextVertexBuffer *wgpu.Buffer
	TextItems        []core.TextItem
	TextVertexCount  uint32

	ShowHUD bool
	VSync   bool

	capacity     int
	log          fountain.Logger
	last         time.Time
	createBuffer func(*wgpu.BufferDescriptor) (*wgpu.Buffer, error)

	FrameCount int
	FPS        float64
	FPSTime    float64
}

func NewApp(window *glfw.Window, cfg *fountain.Config, log fountain.Logger) *App {
	if log == nil {
		log = fountain.NewNopLogger()
	}
	c := cfg.Camera
	return &App{
		Window:   window,
		Camera:   core.NewOrbitCamera(mgl32.Vec3(c.Target), c.Distance, c.Height, c.FOV, c.OrbitSpeed),
		ShowHUD:  true,
		VSync:    cfg.Window.VSync,
		capacity: cfg.Capacity,
		log:      log,
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("requesting adapter: %w", err)
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("requesting device: %w", err)
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: ChoosePresentMode(a.VSync, caps.PresentModes),
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	a.Particles, err = gpu.NewParticleRenderPass(a.Device, a.Config.Format, a.capacity)
	if err != nil {
		return fmt.Errorf("creating particle pass: %w", err)
	}

	a.CameraBuffer, err = a.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Camera UB",
		Size:  gpu.CameraUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	a.CameraBG, err = a.Particles.CreateBindGroup(a.CameraBuffer)
	if err != nil {
		return err
	}

	a.Sampler, err = a.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}

	a.TextRenderer, err = core.NewDefaultTextRenderer(20)
	if err != nil {
		a.log.Warnf("text renderer disabled: %v", err)
	} else if err := a.setupTextResources(); err != nil {
		a.log.Warnf("text renderer disabled: %v", err)
		a.TextRenderer = nil
	}
	return nil
}

// Renderer is the particle buffer the fountain app binds its engine to.
func (a *App) Renderer() *gpu.ParticleRenderPass { return a.Particles }

func (a *App) Resize(w, h int) {
	if w > 0 && h > 0 {
		a.Config.Width = uint32(w)
		a.Config.Height = uint32(h)
		a.Surface.Configure(a.Adapter, a.Device, a.Config)
	}
}

// Frame ticks the simulation app, uploads this frame's particles and draws.
func (a *App) Frame(fx *fountain.App, now time.Time) {
	fx.Tick(now)

	dt := float32(0)
	if !a.last.IsZero() {
		dt = float32(now.Sub(a.last).Seconds())
	}
	a.last = now
	a.Camera.Advance(dt)

	a.ClearText()
	if a.ShowHUD && a.TextRenderer != nil {
		hud := a.TextRenderer.StackLines(HUDLines(fx.Stats(), a.FPS), 10, 1, [4]float32{1, 1, 0, 1})
		a.TextItems = append(a.TextItems, hud...)
	}
	a.Update()
	a.Render(dt)
}

func (a *App) Update() {
	u := a.Camera.Uniform(a.Config.Width, a.Config.Height)
	a.Queue.WriteBuffer(a.CameraBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&u)), gpu.CameraUniformSize))
	a.Particles.Upload(a.Queue)

	if len(a.TextItems) > 0 && a.TextRenderer != nil {
		vertices := a.TextRenderer.BuildVertices(a.TextItems, int(a.Config.Width), int(a.Config.Height))
		if len(vertices) > 0 {
			vSize := uint64(len(vertices) * int(unsafe.Sizeof(core.TextVertex{})))
			if !a.ensureTextBuffer(vSize) {
				return
			}
			a.Queue.WriteBuffer(a.TextVertexBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), vSize))
			a.TextVertexCount = uint32(len(vertices))
		}
	}
}

// ensureTextBuffer grows the HUD vertex buffer to at least size bytes. On failure the HUD
// is skipped for this frame and the next frame tries again.
func (a *App) ensureTextBuffer(size uint64) bool {
	if a.TextVertexBuffer != nil && a.TextVertexBuffer.GetSize() >= size {
		return true
	}
	if a.TextVertexBuffer != nil {
		a.TextVertexBuffer.Release()
		a.TextVertexBuffer = nil
	}
	create := a.createBuffer
	if create == nil {
		create = a.Device.CreateBuffer
	}
	buf, err := create(&wgpu.BufferDescriptor{
		Label: "Text VB",
		Size:  size,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		a.log.Warnf("text vertex buffer (%d bytes): %v", size, err)
		a.TextVertexCount = 0
		return false
	}
	a.TextVertexBuffer = buf
	return true
}

func (a *App) ClearText() {
	a.TextItems = a.TextItems[:0]
	a.TextVertexCount = 0
}

func (a *App) Render(dt float32) {
	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.log.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.log.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		a.log.Errorf("CreateCommandEncoder failed: %v", err)
		return
	}

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0.02, G: 0.02, B: 0.04, A: 1},
		}},
	})
	a.Particles.Draw(rPass, a.CameraBG)

	if a.TextVertexCount > 0 && a.TextVertexBuffer != nil && a.TextPipeline != nil {
		rPass.SetPipeline(a.TextPipeline)
		rPass.SetBindGroup(0, a.TextBindGroup, nil)
		rPass.SetVertexBuffer(0, a.TextVertexBuffer, 0, a.TextVertexBuffer.GetSize())
		rPass.Draw(a.TextVertexCount, 1, 0, 0)
	}

	if err := rPass.End(); err != nil {
		a.log.Errorf("render pass End failed: %v", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		a.log.Errorf("encoder Finish failed: %v", err)
		return
	}
	a.Queue.Submit(cmd)
	a.Surface.Present()

	a.FrameCount++
	a.FPSTime += float64(dt)
	if a.FPSTime >= 1.0 {
		a.FPS = float64(a.FrameCount) / a.FPSTime
		a.FrameCount = 0
		a.FPSTime = 0
	}
}

// Release frees GPU resources. The fountain app must be stopped first so no engine
// writes into the particle pass after it is invalidated.
func (a *App) Release() {
	if a.Particles != nil {
		a.Particles.Release()
	}
	if a.TextVertexBuffer != nil {
		a.TextVertexBuffer.Release()
	}
	if a.CameraBuffer != nil {
		a.CameraBuffer.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}

// ChoosePresentMode picks Fifo for vsync. Without vsync it prefers Mailbox, then
// Immediate, and falls back to Fifo which every surface supports.
func ChoosePresentMode(vsync bool, supported []wgpu.PresentMode) wgpu.PresentMode {
	if vsync {
		return wgpu.PresentModeFifo
	}
	for _, want := range []wgpu.PresentMode{wgpu.PresentModeMailbox, wgpu.PresentModeImmediate} {
		for _, m := range supported {
			if m == want {
				return m
			}
		}
	}
	return wgpu.PresentModeFifo
}

// HUDLines formats the overlay text for one frame.
func HUDLines(s fountain.Stats, fps float64) []string {
	lines := []string{fmt.Sprintf("FPS %.1f  mode %s", fps, s.Mode)}
	switch s.Mode {
	case fountain.ModeBulk:
		lines = append(lines,
			fmt.Sprintf("particles %d  alive %d", s.VertexCount, s.Alive),
			fmt.Sprintf("iterations %d  respawns %d", s.Iterations, s.Respawns),
		)
	case fountain.ModePool:
		lines = append(lines, fmt.Sprintf("allocated %d  draw %d", s.Allocated, s.VertexCount))
	}
	return lines
}

func (a *App) setupTextResources() error {
	tr := a.TextRenderer
	w, h := tr.AtlasImage.Bounds().Dx(), tr.AtlasImage.Bounds().Dy()
	tex, err := a.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Text Atlas",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return err
	}
	a.Queue.WriteTexture(tex.AsImageCopy(), tr.AtlasImage.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(w),
		RowsPerImage: uint32(h),
	}, &wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1})

	a.TextAtlasView, err = tex.CreateView(nil)
	if err != nil {
		return err
	}

	textMod, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Text Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.TextWGSL},
	})
	if err != nil {
		return fmt.Errorf("text shader: %w", err)
	}
	defer textMod.Release()

	a.TextPipeline, err = a.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Text Pipeline",
		Vertex: wgpu.VertexState{
			Module:     textMod,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(core.TextVertex{})),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     textMod,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: a.Config.Format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOne,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("text pipeline: %w", err)
	}

	a.TextBindGroup, err = a.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: a.TextPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: a.TextAtlasView},
			{Binding: 1, Sampler: a.Sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("text bind group: %w", err)
	}
	return nil
}
