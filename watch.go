package fountain

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to a fixed set of files. Editors often replace a file rather
// than write it, so the parent directories are watched and events filtered by name.
// Bursts for the same file inside the debounce window collapse into one event.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration

	Events chan string
	Errors chan error

	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewWatcher(debounce time.Duration, files ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
		dirs[dir] = true
	}

	watcher := &Watcher{
		watcher:  w,
		files:    watched,
		debounce: debounce,
		Events:   make(chan string, 16),
		Errors:   make(chan error, 1),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

// Close stops the watcher. Events and Errors are closed once the event loop has exited.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer func() {
		close(w.Events)
		close(w.Errors)
		close(w.done)
	}()

	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !w.files[name] {
				continue
			}
			now := time.Now()
			if t, ok := last[name]; ok && now.Sub(t) < w.debounce {
				continue
			}
			last[name] = now
			select {
			case w.Events <- name:
			case <-w.closeCh:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}

// WatchModule reloads the config file and the emitter script when they change on disk.
// Changes are applied on the frame goroutine, from Tick. Install it after ScriptModule.
type WatchModule struct {
	Debounce time.Duration
}

func (m WatchModule) Install(app *App) error {
	configPath := app.Config().Path()
	var scriptPath string
	if em, ok := Resource[Emitter](app); ok {
		scriptPath = em.Path()
	}

	var files []string
	for _, f := range []string{configPath, scriptPath} {
		if f != "" {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		app.Logger().Infof("watch: nothing to watch, config and script are built in")
		return nil
	}

	debounce := m.Debounce
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	w, err := NewWatcher(debounce, files...)
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	app.addResources(w)

	absConfig, _ := abs(configPath)
	absScript, _ := abs(scriptPath)

	app.OnUpdate(func(app *App, _ *Time) {
		for {
			select {
			case name, ok := <-w.Events:
				if !ok {
					return
				}
				switch name {
				case absConfig:
					reloadConfig(app, configPath)
				case absScript:
					reloadScript(app)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				app.Logger().Warnf("watch: %v", err)
			default:
				return
			}
		}
	})
	app.OnShutdown(func(app *App) error { return w.Close() })

	app.Logger().Infof("watch: watching %v", files)
	return nil
}

func abs(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}

func reloadConfig(app *App, path string) {
	cfg, err := LoadConfig(path)
	if err != nil {
		app.Logger().Warnf("watch: keeping current config: %v", err)
		return
	}
	app.Apply(cfg)
}

func reloadScript(app *App) {
	em, ok := Resource[Emitter](app)
	if !ok {
		return
	}
	if err := em.Reload(); err != nil {
		app.Logger().Warnf("watch: %v", err)
	}
}
