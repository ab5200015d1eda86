package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraUniform matches the Camera struct in particles.wgsl.
type CameraUniform struct {
	ViewProj mgl32.Mat4
	Right    [4]float32
	Up       [4]float32
}

// OrbitCamera circles a target point at a fixed distance and height. Y is up.
type OrbitCamera struct {
	Target     mgl32.Vec3
	Distance   float32
	Height     float32
	FOV        float32 // degrees
	OrbitSpeed float32 // radians per second
	Angle      float32
	Near, Far  float32
}

func NewOrbitCamera(target mgl32.Vec3, distance, height, fov, orbitSpeed float32) *OrbitCamera {
	return &OrbitCamera{
		Target:     target,
		Distance:   distance,
		Height:     height,
		FOV:        fov,
		OrbitSpeed: orbitSpeed,
		Near:       0.1,
		Far:        1000,
	}
}

// Advance rotates the camera by OrbitSpeed over dt seconds.
func (c *OrbitCamera) Advance(dt float32) {
	c.Angle = float32(math.Mod(float64(c.Angle+c.OrbitSpeed*dt), 2*math.Pi))
}

func (c *OrbitCamera) Position() mgl32.Vec3 {
	s, co := math.Sincos(float64(c.Angle))
	return c.Target.Add(mgl32.Vec3{
		float32(s) * c.Distance,
		c.Height,
		float32(co) * c.Distance,
	})
}

func (c *OrbitCamera) GetViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Target, mgl32.Vec3{0, 1, 0})
}

func (c *OrbitCamera) GetProjectionMatrix(width, height uint32) mgl32.Mat4 {
	aspect := float32(1)
	if width > 0 && height > 0 {
		aspect = float32(width) / float32(height)
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), aspect, c.Near, c.Far)
}

// Uniform packs the view-projection matrix and the billboard axes for the shader.
// The axes are the first two rows of the view rotation.
func (c *OrbitCamera) Uniform(width, height uint32) CameraUniform {
	view := c.GetViewMatrix()
	right := view.Row(0)
	up := view.Row(1)
	return CameraUniform{
		ViewProj: c.GetProjectionMatrix(width, height).Mul4(view),
		Right:    [4]float32{right[0], right[1], right[2], 0},
		Up:       [4]float32{up[0], up[1], up[2], 0},
	}
}
