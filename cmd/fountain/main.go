package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gekko3d/fountain"
	"github.com/gekko3d/fountain/rt/app"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	// glfw and the surface must stay on the main thread.
	runtime.LockOSThread()
}

type options struct {
	configPath string
	mode       string
	headless   bool
	duration   time.Duration
	script     string
	telemetry  string
	debug      bool
	dumpConfig string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("fountain", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "YAML config overlaid on the built-in defaults")
	fs.StringVar(&o.mode, "mode", "", "particle strategy: bulk or pool (overrides config)")
	fs.BoolVar(&o.headless, "headless", false, "run without a window")
	fs.DurationVar(&o.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	fs.StringVar(&o.script, "script", "", "emitter script for pool mode")
	fs.StringVar(&o.telemetry, "telemetry", "", "write CSV telemetry to this file")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	fs.StringVar(&o.dumpConfig, "dump-config", "", "write the effective config to this file and exit")
	err := fs.Parse(args)
	return o, err
}

// loadConfig reads the config file and applies command-line overrides on top.
func loadConfig(o options) (*fountain.Config, error) {
	cfg, err := fountain.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.mode != "" {
		cfg.Mode = fountain.Mode(o.mode)
	}
	if o.script != "" {
		cfg.Pool.Script = o.script
	}
	if o.telemetry != "" {
		cfg.Telemetry.Path = o.telemetry
	}
	if o.debug {
		cfg.Debug = true
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "fountain: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	if o.dumpConfig != "" {
		return cfg.WriteYAML(o.dumpConfig)
	}

	log := fountain.NewDefaultLogger("fountain", cfg.Debug)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if o.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.duration)
		defer cancel()
	}

	if o.headless {
		return runHeadless(ctx, cfg, log)
	}
	return runWindowed(ctx, cfg, log)
}

func runHeadless(ctx context.Context, cfg *fountain.Config, log fountain.Logger) error {
	fx, err := fountain.NewAppBuilder(cfg).
		UseLogger(log).
		UseModule(fountain.DefaultModules(cfg)...).
		Build()
	if err != nil {
		return err
	}
	if err := fx.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s := fx.Stats()
			log.Infof("final: vertex_count=%d alive=%d allocated=%d iterations=%d",
				s.VertexCount, s.Alive, s.Allocated, s.Iterations)
			return fx.Stop()
		case now := <-ticker.C:
			fx.Tick(now)
		}
	}
}

func runWindowed(ctx context.Context, cfg *fountain.Config, log fountain.Logger) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initializing glfw: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		return fmt.Errorf("creating window: %w", err)
	}
	defer window.Destroy()

	viewer := app.NewApp(window, cfg, log)
	if err := viewer.Init(); err != nil {
		return err
	}
	defer viewer.Release()

	fx, err := fountain.NewAppBuilder(cfg).
		UseLogger(log).
		UseRenderer(viewer.Renderer()).
		UseModule(fountain.DefaultModules(cfg)...).
		Build()
	if err != nil {
		return err
	}
	if err := fx.Start(); err != nil {
		return err
	}
	// Deferred calls run in reverse, so the engine stops before the viewer is released.
	defer fx.Close()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		viewer.Resize(width, height)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyH:
			viewer.ShowHUD = !viewer.ShowHUD
		}
	})

	for !window.ShouldClose() && ctx.Err() == nil {
		glfw.PollEvents()
		viewer.Frame(fx, time.Now())
	}
	return fx.Stop()
}
