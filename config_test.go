package fountain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ModeBulk, cfg.Mode)
	assert.Equal(t, 10000, cfg.Capacity)
	assert.Equal(t, "", cfg.Path())

	ec := cfg.EngineConfig()
	assert.Equal(t, 10000, ec.Count)
	assert.Equal(t, mgl32.Vec3{0, 2.5, 0}, ec.SpawnPos)
	assert.Equal(t, float32(9.81), ec.Gravity)
	assert.Equal(t, float32(0.7), ec.MinBounce)
	assert.Equal(t, float32(0.9), ec.MaxBounce)
	assert.Equal(t, mgl32.Vec3{0, 5, 0}, ec.VelocityMean)
	assert.Equal(t, mgl32.Vec3{3, 2, 3}, ec.VelocitySigma)
	assert.Equal(t, float32(0.15), ec.MinSize)
	assert.Equal(t, float32(0.20), ec.MaxSize)
	assert.Equal(t, float32(0), ec.GroundLevel)
	assert.Equal(t, 5000*time.Millisecond, ec.MinTTL)
	assert.Equal(t, 6000*time.Millisecond, ec.MaxTTL)
	assert.Equal(t, 3*time.Second, cfg.StartDelay())
	assert.Equal(t, [3]float32{2, 3, 2}, cfg.Camera.Target)
}

func TestLoadConfig_OverlaysUserFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fountain.yaml", `
mode: pool
capacity: 2000
engine:
  gravity: 1.62
  spawn_pos: [1, 2, 3]
telemetry:
  path: out.csv
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ModePool, cfg.Mode)
	assert.Equal(t, 2000, cfg.Capacity)
	assert.Equal(t, float32(1.62), cfg.Engine.Gravity)
	assert.Equal(t, [3]float32{1, 2, 3}, cfg.Engine.SpawnPos)
	// untouched keys keep their defaults
	assert.Equal(t, float32(0.7), cfg.Engine.BounceMin)
	assert.Equal(t, 1000, cfg.Telemetry.IntervalMS)
	assert.Equal(t, time.Second, cfg.TelemetryInterval())
	assert.Equal(t, path, cfg.Path())
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.yaml", "mode: [unclosed")
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	invalid := writeFile(t, dir, "invalid.yaml", "capacity: -1\n")
	_, err = LoadConfig(invalid)
	assert.ErrorContains(t, err, "capacity must be positive")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"mode", func(c *Config) { c.Mode = "spray" }, "mode"},
		{"count above capacity", func(c *Config) { c.Engine.Count = c.Capacity + 1 }, "engine.count"},
		{"bounce order", func(c *Config) { c.Engine.BounceMin = 1 }, "bounce_min"},
		{"size order", func(c *Config) { c.Engine.SizeMin = 1 }, "size_min"},
		{"ttl order", func(c *Config) { c.Engine.TTLMinMS = 7000 }, "ttl_min_ms"},
		{"negative sigma", func(c *Config) { c.Engine.VelocitySigma[1] = -1 }, "velocity_sigma[1]"},
		{"negative delay", func(c *Config) { c.Engine.StartDelayMS = -5 }, "delays"},
		{"window size", func(c *Config) { c.Window.Height = 0 }, "window size"},
		{"camera fov", func(c *Config) { c.Camera.FOV = 180 }, "camera.fov"},
		{"telemetry interval", func(c *Config) {
			c.Telemetry.Path = "x.csv"
			c.Telemetry.IntervalMS = 0
		}, "interval_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfig_WriteYAMLLoadsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModePool
	cfg.Engine.Gravity = 3.71
	cfg.Pool.Script = "emitters/rings.tengo"

	path := filepath.Join(t.TempDir(), "dump.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ModePool, loaded.Mode)
	assert.Equal(t, float32(3.71), loaded.Engine.Gravity)
	assert.Equal(t, "emitters/rings.tengo", loaded.Pool.Script)
}

func TestConfig_ExplicitEngineCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Count = 250
	assert.Equal(t, 250, cfg.EngineConfig().Count)
	assert.Equal(t, time.Millisecond, cfg.EngineConfig().TickInterval)
}
