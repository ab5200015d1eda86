package fountain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replaceFile swaps content in with a rename, the way most editors save.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestWatcher_ReportsWatchedFileOnly(t *testing.T) {
	dir := t.TempDir()
	watched := writeFile(t, dir, "fountain.yaml", "mode: bulk\n")
	other := writeFile(t, dir, "notes.txt", "x")

	w, err := NewWatcher(10*time.Millisecond, watched)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(other, []byte("y"), 0644))
	require.NoError(t, os.WriteFile(watched, []byte("mode: pool\n"), 0644))

	want, err := filepath.Abs(watched)
	require.NoError(t, err)
	select {
	case name := <-w.Events:
		assert.Equal(t, want, name)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for the watched file")
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.yaml", "")
	w, err := NewWatcher(time.Millisecond, path)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())

	_, ok := <-w.Events
	assert.False(t, ok, "Events is closed after Close")
}

func TestWatchModule_ReloadsConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fountain.yaml", "capacity: 64\nengine:\n  start_delay_ms: 0\n  gravity: 9.81\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	app, err := NewAppBuilder(cfg).UseModule(WatchModule{Debounce: time.Millisecond}).Build()
	require.NoError(t, err)
	require.NoError(t, app.Start())
	defer app.Close()

	replaceFile(t, path, "capacity: 64\nengine:\n  start_delay_ms: 0\n  gravity: 1.62\n")

	require.Eventually(t, func() bool {
		app.Tick(time.Now())
		return app.Engine().Config().Gravity == 1.62
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, path, app.Config().Path())
}

func TestWatchModule_KeepsConfigOnBadReload(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fountain.yaml", "capacity: 64\nengine:\n  start_delay_ms: 0\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	app, err := NewAppBuilder(cfg).UseModule(WatchModule{Debounce: time.Millisecond}).Build()
	require.NoError(t, err)
	require.NoError(t, app.Start())
	defer app.Close()

	w, ok := Resource[Watcher](app)
	require.True(t, ok)

	replaceFile(t, path, "capacity: -5\n")
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && len(w.Events) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	app.Tick(time.Now())

	assert.Equal(t, 64, app.Config().Capacity)
	assert.Equal(t, float32(9.81), app.Engine().Config().Gravity)
}

func TestWatchModule_ReloadsScript(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "emit.tengo", "fx.spawn([0, 0, 0], [1, 1, 1, 1], 0.1)\n")

	cfg := poolConfig(16)
	cfg.Pool.Script = script
	app, err := NewAppBuilder(cfg).
		UseModule(ScriptModule{Path: script}, WatchModule{Debounce: time.Millisecond}).
		Build()
	require.NoError(t, err)
	require.NoError(t, app.Start())
	defer app.Close()
	require.Equal(t, 1, app.StaticEngine().Count())

	replaceFile(t, script, `
for i := 0; i < 5; i++ {
	fx.spawn([i, 0, 0], [1, 1, 1, 1], 0.1)
}
`)

	require.Eventually(t, func() bool {
		app.Tick(time.Now())
		return app.StaticEngine().Count() == 5
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatchModule_NothingToWatch(t *testing.T) {
	app, err := NewAppBuilder(poolConfig(8)).UseModule(ScriptModule{}, WatchModule{}).Build()
	require.NoError(t, err)
	_, ok := Resource[Watcher](app)
	assert.False(t, ok)
}
