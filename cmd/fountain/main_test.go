package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gekko3d/fountain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagOverrides(t *testing.T) {
	o, err := parseFlags([]string{"-mode", "pool", "-script", "rings.tengo", "-telemetry", "out.csv", "-debug"})
	require.NoError(t, err)

	cfg, err := loadConfig(o)
	require.NoError(t, err)
	assert.Equal(t, fountain.ModePool, cfg.Mode)
	assert.Equal(t, "rings.tengo", cfg.Pool.Script)
	assert.Equal(t, "out.csv", cfg.Telemetry.Path)
	assert.True(t, cfg.Debug)
}

func TestLoadConfig_BadMode(t *testing.T) {
	o, err := parseFlags([]string{"-mode", "spray"})
	require.NoError(t, err)
	_, err = loadConfig(o)
	assert.Error(t, err)
}

func TestRun_DumpConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effective.yaml")
	require.NoError(t, run([]string{"-mode", "pool", "-dump-config", path}))

	cfg, err := fountain.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, fountain.ModePool, cfg.Mode)
}

func TestRunHeadless_StopsOnDeadline(t *testing.T) {
	cfg := fountain.DefaultConfig()
	cfg.Capacity = 256
	cfg.Engine.StartDelayMS = 0
	cfg.Telemetry.Path = filepath.Join(t.TempDir(), "telemetry.csv")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, runHeadless(ctx, cfg, fountain.NewNopLogger()))

	data, err := os.ReadFile(cfg.Telemetry.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "elapsed_s")
}
