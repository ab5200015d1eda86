// Package fountain composes the particle engines with a renderer, configuration and the
// optional modules (telemetry, hot reload, scripted emission) into a runnable App.
package fountain

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/gekko3d/fountain/particles"
)

// Module extends an App. Install runs once, from AppBuilder.Build.
type Module interface {
	Install(app *App) error
}

// Time is the per-frame clock resource, advanced by Tick.
type Time struct {
	Start time.Time
	Time  time.Time
	Dt    time.Duration
	Frame uint64
}

// Elapsed returns the time since the first Tick.
func (t *Time) Elapsed() time.Duration { return t.Time.Sub(t.Start) }

type (
	startupFn  func(app *App) error
	updateFn   func(app *App, t *Time)
	shutdownFn func(app *App) error
)

// App binds exactly one engine strategy to one renderer. In bulk mode the continuous
// respawn Engine owns the renderer's buffer; in pool mode a Pool and a StaticEngine do.
// The two never share a renderer.
//
// Start, Tick and Stop are meant to be called from one goroutine, the frame loop.
type App struct {
	cfg      *Config
	log      Logger
	clock    particles.Clock
	renderer particles.Renderer
	mode     Mode

	engine *particles.Engine
	pool   *particles.Pool
	static *particles.StaticEngine

	resources map[reflect.Type]any
	startup   []startupFn
	update    []updateFn
	shutdown  []shutdownFn

	time    Time
	started bool
	stopped bool
}

func (app *App) Config() *Config                       { return app.cfg }
func (app *App) Mode() Mode                            { return app.mode }
func (app *App) Renderer() particles.Renderer          { return app.renderer }
func (app *App) Engine() *particles.Engine             { return app.engine }
func (app *App) Pool() *particles.Pool                 { return app.pool }
func (app *App) StaticEngine() *particles.StaticEngine { return app.static }
func (app *App) Time() *Time                           { return &app.time }
func (app *App) Started() bool                         { return app.started && !app.stopped }

// OnStartup registers fn to run after the engine is bound, in registration order.
func (app *App) OnStartup(fn func(app *App) error) { app.startup = append(app.startup, fn) }

// OnUpdate registers fn to run on every Tick.
func (app *App) OnUpdate(fn func(app *App, t *Time)) { app.update = append(app.update, fn) }

// OnShutdown registers fn to run from Stop, in reverse registration order.
func (app *App) OnShutdown(fn func(app *App) error) { app.shutdown = append(app.shutdown, fn) }

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}
		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// Resource returns the resource of type T installed by a module, if any.
func Resource[T any](app *App) (*T, bool) {
	if app == nil {
		return nil, false
	}
	r, ok := app.resources[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return nil, false
	}
	t, ok := r.(*T)
	return t, ok
}

// Start binds the configured strategy to the renderer, runs the startup hooks and, in
// bulk mode, launches the simulation goroutine after the configured start delay.
func (app *App) Start() error {
	if app.started {
		return nil
	}
	switch app.mode {
	case ModeBulk:
		if err := app.engine.Init(app.cfg.EngineConfig(), app.renderer); err != nil {
			return fmt.Errorf("starting app: %w", err)
		}
	case ModePool:
		if err := app.pool.Init(app.renderer); err != nil {
			return fmt.Errorf("starting app: %w", err)
		}
		if err := app.static.Init(app.pool); err != nil {
			return fmt.Errorf("starting app: %w", err)
		}
		if err := app.static.Start(); err != nil {
			return fmt.Errorf("starting app: %w", err)
		}
	}
	app.started = true

	for _, fn := range app.startup {
		if err := fn(app); err != nil {
			_ = app.Stop()
			return fmt.Errorf("starting app: %w", err)
		}
	}

	if app.mode == ModeBulk {
		if err := app.engine.Start(app.cfg.StartDelay()); err != nil {
			_ = app.Stop()
			return fmt.Errorf("starting app: %w", err)
		}
	}
	app.log.Infof("fountain started: mode=%s capacity=%d", app.mode, app.renderer.Capacity())
	return nil
}

// Tick advances the frame clock and runs the update hooks.
func (app *App) Tick(now time.Time) {
	if !app.Started() {
		return
	}
	if app.time.Frame == 0 {
		app.time.Start = now
		app.time.Time = now
	}
	app.time.Dt = now.Sub(app.time.Time)
	app.time.Time = now
	app.time.Frame++

	for _, fn := range app.update {
		fn(app, &app.time)
	}
}

// Stop halts the engine first, so nothing writes to the renderer after this returns,
// then runs the shutdown hooks and unbinds the pool. The caller may release the
// renderer afterwards. Stop is idempotent.
func (app *App) Stop() error {
	if !app.started || app.stopped {
		return nil
	}
	app.stopped = true

	var errs []error
	switch app.mode {
	case ModeBulk:
		app.engine.Stop()
	case ModePool:
		if err := app.static.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	for i := len(app.shutdown) - 1; i >= 0; i-- {
		if err := app.shutdown[i](app); err != nil {
			errs = append(errs, err)
		}
	}

	if app.pool != nil {
		app.pool.Clear()
	}
	app.log.Infof("fountain stopped after %d frames", app.time.Frame)
	return errors.Join(errs...)
}

// Close is Stop for use with defer.
func (app *App) Close() error { return app.Stop() }

// Apply takes the live-tunable parts of cfg. Mode and capacity need a restart and are
// ignored with a warning.
func (app *App) Apply(cfg *Config) {
	if cfg.Mode != app.cfg.Mode || cfg.Capacity != app.cfg.Capacity {
		app.log.Warnf("config reload: mode and capacity changes need a restart, keeping %s/%d",
			app.cfg.Mode, app.cfg.Capacity)
	}
	next := *cfg
	next.Mode = app.cfg.Mode
	next.Capacity = app.cfg.Capacity
	next.path = app.cfg.path
	app.cfg = &next

	if app.mode == ModeBulk && app.engine != nil {
		app.engine.Apply(next.EngineConfig())
	}
	app.log.SetDebug(next.Debug)
	app.log.Infof("config reloaded")
}

// Stats is a snapshot of the running strategy.
type Stats struct {
	Mode        Mode
	VertexCount uint32
	Alive       int
	Iterations  uint64
	Respawns    uint64
	Allocated   int
}

func (app *App) Stats() Stats {
	s := Stats{Mode: app.mode}
	if app.renderer != nil {
		s.VertexCount = app.renderer.DrawCommand().Count()
	}
	switch app.mode {
	case ModeBulk:
		es := app.engine.Stats()
		s.Alive = es.Alive
		s.Iterations = es.Iterations
		s.Respawns = es.Respawns
	case ModePool:
		s.Allocated = app.pool.Count()
		s.Alive = app.static.Count()
	}
	return s
}
