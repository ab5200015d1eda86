package fountain

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gekko3d/fountain/particles"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Mode selects which engine strategy drives the renderer.
type Mode string

const (
	ModeBulk Mode = "bulk"
	ModePool Mode = "pool"
)

// Config is the full application configuration.
type Config struct {
	Mode      Mode             `yaml:"mode"`
	Capacity  int              `yaml:"capacity"`
	Debug     bool             `yaml:"debug"`
	Engine    EngineSection    `yaml:"engine"`
	Pool      PoolSection      `yaml:"pool"`
	Window    WindowSection    `yaml:"window"`
	Camera    CameraSection    `yaml:"camera"`
	Telemetry TelemetrySection `yaml:"telemetry"`
	Watch     WatchSection     `yaml:"watch"`

	// file the config was loaded from, if any
	path string
}

// EngineSection holds the bulk engine parameters.
type EngineSection struct {
	Count          int        `yaml:"count"`
	SpawnPos       [3]float32 `yaml:"spawn_pos,flow"`
	Gravity        float32    `yaml:"gravity"`
	BounceMin      float32    `yaml:"bounce_min"`
	BounceMax      float32    `yaml:"bounce_max"`
	VelocityMean   [3]float32 `yaml:"velocity_mean,flow"`
	VelocitySigma  [3]float32 `yaml:"velocity_sigma,flow"`
	SizeMin        float32    `yaml:"size_min"`
	SizeMax        float32    `yaml:"size_max"`
	GroundLevel    float32    `yaml:"ground_level"`
	TTLMinMS       int        `yaml:"ttl_min_ms"`
	TTLMaxMS       int        `yaml:"ttl_max_ms"`
	StartDelayMS   int        `yaml:"start_delay_ms"`
	TickIntervalMS int        `yaml:"tick_interval_ms"`
	Seed           uint64     `yaml:"seed"`
}

// PoolSection configures the pool strategy.
type PoolSection struct {
	Script string `yaml:"script"` // emitter script path; empty uses the embedded one
}

type WindowSection struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	VSync  bool   `yaml:"vsync"`
}

// CameraSection places the orbit camera around the spawn point.
type CameraSection struct {
	Target     [3]float32 `yaml:"target,flow"`
	Distance   float32    `yaml:"distance"`
	Height     float32    `yaml:"height"`
	FOV        float32    `yaml:"fov"`         // degrees
	OrbitSpeed float32    `yaml:"orbit_speed"` // radians per second
}

type TelemetrySection struct {
	Path       string `yaml:"path"`
	IntervalMS int    `yaml:"interval_ms"`
}

type WatchSection struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// LoadConfig loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		cfg.path = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from, or "".
func (c *Config) Path() string { return c.path }

// Validate rejects configurations no engine could run.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeBulk, ModePool:
	default:
		errs = append(errs, fmt.Errorf("mode %q: want %q or %q", c.Mode, ModeBulk, ModePool))
	}
	if c.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("capacity must be positive, got %d", c.Capacity))
	}
	e := c.Engine
	if e.Count < 0 || e.Count > c.Capacity {
		errs = append(errs, fmt.Errorf("engine.count %d outside [0, %d]", e.Count, c.Capacity))
	}
	if e.BounceMin > e.BounceMax {
		errs = append(errs, fmt.Errorf("engine.bounce_min %g > bounce_max %g", e.BounceMin, e.BounceMax))
	}
	if e.SizeMin > e.SizeMax {
		errs = append(errs, fmt.Errorf("engine.size_min %g > size_max %g", e.SizeMin, e.SizeMax))
	}
	if e.TTLMinMS < 0 || e.TTLMinMS > e.TTLMaxMS {
		errs = append(errs, fmt.Errorf("engine.ttl_min_ms %d, ttl_max_ms %d", e.TTLMinMS, e.TTLMaxMS))
	}
	for i, s := range e.VelocitySigma {
		if s < 0 {
			errs = append(errs, fmt.Errorf("engine.velocity_sigma[%d] is negative", i))
		}
	}
	if e.StartDelayMS < 0 || e.TickIntervalMS < 0 {
		errs = append(errs, errors.New("engine delays must not be negative"))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		errs = append(errs, fmt.Errorf("camera.fov %g outside (0, 180)", c.Camera.FOV))
	}
	if c.Telemetry.Path != "" && c.Telemetry.IntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("telemetry.interval_ms must be positive, got %d", c.Telemetry.IntervalMS))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// EngineConfig converts the engine section to the bulk engine's parameters. A zero
// engine.count means the whole configured capacity.
func (c *Config) EngineConfig() particles.EngineConfig {
	e := c.Engine
	count := e.Count
	if count == 0 {
		count = c.Capacity
	}
	return particles.EngineConfig{
		Count:         count,
		SpawnPos:      mgl32.Vec3(e.SpawnPos),
		Gravity:       e.Gravity,
		MinBounce:     e.BounceMin,
		MaxBounce:     e.BounceMax,
		VelocityMean:  mgl32.Vec3(e.VelocityMean),
		VelocitySigma: mgl32.Vec3(e.VelocitySigma),
		MinSize:       e.SizeMin,
		MaxSize:       e.SizeMax,
		GroundLevel:   e.GroundLevel,
		MinTTL:        ms(e.TTLMinMS),
		MaxTTL:        ms(e.TTLMaxMS),
		TickInterval:  ms(e.TickIntervalMS),
		Seed:          e.Seed,
	}
}

func (c *Config) StartDelay() time.Duration        { return ms(c.Engine.StartDelayMS) }
func (c *Config) TelemetryInterval() time.Duration { return ms(c.Telemetry.IntervalMS) }
func (c *Config) WatchDebounce() time.Duration     { return ms(c.Watch.DebounceMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
