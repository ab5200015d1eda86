package core

import (
	"math"
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestCameraUniform_Size(t *testing.T) {
	assert.Equal(t, uintptr(96), unsafe.Sizeof(CameraUniform{}))
}

func TestOrbitCamera_Position(t *testing.T) {
	cam := NewOrbitCamera(mgl32.Vec3{0, 2.5, 0}, 15, 6, 45, 0.2)
	assert.True(t, cam.Position().ApproxEqual(mgl32.Vec3{0, 8.5, 15}))

	cam.Angle = math.Pi / 2
	assert.True(t, cam.Position().ApproxEqualThreshold(mgl32.Vec3{15, 8.5, 0}, 1e-4))
}

func TestOrbitCamera_AdvanceWraps(t *testing.T) {
	cam := NewOrbitCamera(mgl32.Vec3{}, 10, 0, 45, math.Pi)
	cam.Advance(1)
	assert.InDelta(t, math.Pi, cam.Angle, 1e-5)
	cam.Advance(1.5)
	assert.InDelta(t, math.Pi/2, cam.Angle, 1e-5)
}

func TestOrbitCamera_TargetProjectsToCenter(t *testing.T) {
	cam := NewOrbitCamera(mgl32.Vec3{1, 2, 3}, 15, 6, 45, 0)
	cam.Angle = 0.7

	u := cam.Uniform(1280, 720)
	clip := u.ViewProj.Mul4x1(cam.Target.Vec4(1))
	assert.InDelta(t, 0, clip.X()/clip.W(), 1e-4)
	assert.InDelta(t, 0, clip.Y()/clip.W(), 1e-4)

	right := mgl32.Vec3{u.Right[0], u.Right[1], u.Right[2]}
	up := mgl32.Vec3{u.Up[0], u.Up[1], u.Up[2]}
	assert.InDelta(t, 1, right.Len(), 1e-5)
	assert.InDelta(t, 1, up.Len(), 1e-5)
	assert.InDelta(t, 0, right.Dot(up), 1e-5)
	assert.InDelta(t, 0, right.Y(), 1e-5, "orbit keeps the horizon level")
}

func TestOrbitCamera_ZeroSizeAspect(t *testing.T) {
	cam := NewOrbitCamera(mgl32.Vec3{}, 10, 0, 60, 0)
	assert.Equal(t, mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 1000), cam.GetProjectionMatrix(0, 0))
}
