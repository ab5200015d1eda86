package fountain

import (
	"testing"

	"github.com/gekko3d/fountain/particles"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runningStatic(t *testing.T, capacity int) (*particles.StaticEngine, *particles.HostBuffer) {
	t.Helper()
	buf := particles.NewHostBuffer(capacity)
	pool, err := particles.NewPoolFor(buf)
	require.NoError(t, err)
	static, err := particles.NewStaticEngineFor(pool, nil)
	require.NoError(t, err)
	require.NoError(t, static.Start())
	return static, buf
}

func TestEmitter_SpawnsFromScript(t *testing.T) {
	static, buf := runningStatic(t, 8)
	em, err := NewEmitter(static, []byte(`
fx.spawn([1.0, 2.0, 3.0], [1.0, 0.0, 0.0, 1.0], 0.25)
fx.spawn([4, 5, 6], [0, 1, 0, 1], 0.5)
`), "", 1, nil)
	require.NoError(t, err)

	require.NoError(t, em.Run())
	assert.Equal(t, 2, static.Count())
	assert.Equal(t, EmitterStats{Runs: 1, Spawned: 2}, em.Stats())

	v := buf.Vertices()
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, v[0].Pos)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, v[0].Color)
	assert.Equal(t, float32(0.25), v[0].Size)
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, v[1].Pos)
}

func TestEmitter_RunReplacesPreviousParticles(t *testing.T) {
	static, buf := runningStatic(t, 8)
	em, err := NewEmitter(static, []byte(`
for i := 0; i < 3; i++ {
	fx.spawn([i, 0, 0], [1, 1, 1, 1], 0.1)
}
`), "", 1, nil)
	require.NoError(t, err)

	require.NoError(t, em.Run())
	require.NoError(t, em.Run())
	assert.Equal(t, 3, static.Count())
	assert.Equal(t, uint32(3), buf.DrawCommand().Count())
	assert.Equal(t, 2, em.Stats().Runs)
}

func TestEmitter_CountsDroppedSpawns(t *testing.T) {
	static, _ := runningStatic(t, 4)
	em, err := NewEmitter(static, []byte(`
placed := 0
for i := 0; i < 10; i++ {
	if fx.spawn([0, 0, 0], [1, 1, 1, 1], 0.1) {
		placed++
	}
}
if placed != fx.capacity() || fx.count() != 4 {
	fx.kill_all()
}
`), "", 1, nil)
	require.NoError(t, err)

	require.NoError(t, em.Run())
	assert.Equal(t, 4, static.Count())
	assert.Equal(t, 4, em.Stats().Spawned)
	assert.Equal(t, 6, em.Stats().Dropped)
}

func TestEmitter_RandomHelpers(t *testing.T) {
	static, buf := runningStatic(t, 64)
	em, err := NewEmitter(static, []byte(`
for i := 0; i < 64; i++ {
	fx.spawn([fx.uniform(2.0, 3.0), fx.normal(1.0, 0.0), 0.0], [1, 1, 1, 1], 0.1)
}
`), "", 5, nil)
	require.NoError(t, err)
	require.NoError(t, em.Run())

	for _, v := range buf.Vertices() {
		assert.GreaterOrEqual(t, v.Pos.X(), float32(2))
		assert.LessOrEqual(t, v.Pos.X(), float32(3))
		assert.Equal(t, float32(1), v.Pos.Y())
	}
}

func TestEmitter_Errors(t *testing.T) {
	static, _ := runningStatic(t, 4)

	_, err := NewEmitter(static, []byte(`fx.spawn(`), "", 1, nil)
	assert.Error(t, err, "syntax error")

	em, err := NewEmitter(static, []byte(`fx.spawn([0, 0], [1, 1, 1, 1], 0.1)`), "", 1, nil)
	require.NoError(t, err)
	assert.Error(t, em.Run(), "short position")

	em, err = NewEmitter(static, []byte(`fx.uniform(1.0)`), "", 1, nil)
	require.NoError(t, err)
	assert.Error(t, em.Run())
}

func TestEmitter_DefaultScriptBuildsTwoHemispheres(t *testing.T) {
	static, buf := runningStatic(t, 2000)
	em, err := NewEmitter(static, defaultEmitterScript, "", 3, nil)
	require.NoError(t, err)
	require.NoError(t, em.Run())

	require.Equal(t, 2000, static.Count())
	assert.Equal(t, 0, em.Stats().Dropped)

	upright := mgl32.Vec3{0, 5, 5}
	tilted := mgl32.Vec3{7, 5, 5}
	for i, h := range static.Handles() {
		slot, ok := static.Slot(h)
		require.True(t, ok)
		p := buf.Vertices()[slot].Pos

		// spawns alternate between the two shells, both of radius 3
		center := upright
		if i%2 == 1 {
			center = tilted
		}
		assert.InDelta(t, 3.0, p.Sub(center).Len(), 1e-3, "particle %d", i)
		if i%2 == 0 {
			assert.GreaterOrEqual(t, p.Y(), float32(5)-1e-4, "upright shell is the upper half")
		}
	}
}

func TestEmitter_DefaultScriptDropsPastCapacity(t *testing.T) {
	static, _ := runningStatic(t, 1000)
	em, err := NewEmitter(static, defaultEmitterScript, "", 3, nil)
	require.NoError(t, err)
	require.NoError(t, em.Run())

	assert.Equal(t, 1000, static.Count())
	assert.Equal(t, 1000, em.Stats().Dropped)
}

func TestScriptModule_NeedsPoolMode(t *testing.T) {
	_, err := NewAppBuilder(bulkConfig(8)).UseModule(ScriptModule{}).Build()
	assert.Error(t, err)
}
