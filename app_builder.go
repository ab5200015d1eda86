package fountain

import (
	"fmt"
	"reflect"
	"time"

	"github.com/gekko3d/fountain/particles"
)

type AppBuilder struct {
	cfg      *Config
	log      Logger
	clock    particles.Clock
	renderer particles.Renderer
	modules  []Module
}

// NewAppBuilder starts an App from cfg. A nil cfg means the embedded defaults.
func NewAppBuilder(cfg *Config) *AppBuilder {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &AppBuilder{cfg: cfg}
}

func (b *AppBuilder) UseLogger(l Logger) *AppBuilder {
	b.log = l
	return b
}

// UseClock replaces time.Now for the engines. Tests drive time through it.
func (b *AppBuilder) UseClock(clock particles.Clock) *AppBuilder {
	b.clock = clock
	return b
}

// UseRenderer selects the renderer the engines write to. Only one renderer may be
// selected; choosing a second one panics.
func (b *AppBuilder) UseRenderer(r particles.Renderer) *AppBuilder {
	if b.renderer != nil && b.renderer != r {
		b.logger().Errorf("Multiple renderers installed: %T and %T", b.renderer, r)
		panic(fmt.Sprintf("Multiple renderers installed: %T and %T", b.renderer, r))
	}
	b.renderer = r
	return b
}

func (b *AppBuilder) UseModule(modules ...Module) *AppBuilder {
	b.modules = append(b.modules, modules...)
	return b
}

func (b *AppBuilder) logger() Logger {
	if b.log == nil {
		b.log = NewNopLogger()
	}
	return b.log
}

// Build validates the configuration, creates the strategy for the configured mode and
// installs the modules in order. Without a renderer, an in-memory HostBuffer of the
// configured capacity is used.
func (b *AppBuilder) Build() (*App, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	log := b.logger()
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	renderer := b.renderer
	if renderer == nil {
		renderer = particles.NewHostBuffer(b.cfg.Capacity)
	}
	if renderer.Capacity() < b.cfg.Capacity {
		return nil, fmt.Errorf("building app: renderer holds %d particles, config wants %d: %w",
			renderer.Capacity(), b.cfg.Capacity, particles.ErrCapacityExceeded)
	}

	app := &App{
		cfg:       b.cfg,
		log:       log,
		clock:     clock,
		renderer:  renderer,
		mode:      b.cfg.Mode,
		resources: make(map[reflect.Type]any),
	}

	switch app.mode {
	case ModeBulk:
		app.engine = particles.NewEngine(particles.WithClock(clock), particles.WithLogger(log))
	case ModePool:
		app.pool = particles.NewPool()
		app.static = particles.NewStaticEngine(log)
	}
	log.Infof("Strategy selected: %s", app.mode)

	for _, module := range b.modules {
		if err := module.Install(app); err != nil {
			return nil, fmt.Errorf("installing %T: %w", module, err)
		}
	}
	return app, nil
}

// DefaultModules returns the modules cfg asks for, in install order.
func DefaultModules(cfg *Config) []Module {
	var mods []Module
	if cfg.Mode == ModePool {
		mods = append(mods, ScriptModule{Path: cfg.Pool.Script, Seed: cfg.Engine.Seed})
	}
	if cfg.Telemetry.Path != "" {
		mods = append(mods, TelemetryModule{Path: cfg.Telemetry.Path, Interval: cfg.TelemetryInterval()})
	}
	if cfg.Watch.Enabled {
		mods = append(mods, WatchModule{Debounce: cfg.WatchDebounce()})
	}
	return mods
}
