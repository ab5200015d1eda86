package fountain

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/gekko3d/fountain/particles"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed emitters/hemispheres.tengo
var defaultEmitterScript []byte

// EmitterStats counts what the emitter script did on its last run.
type EmitterStats struct {
	Runs    int
	Spawned int
	Dropped int // spawns refused because the pool was full
}

// Emitter runs a tengo script that places particles through the StaticEngine. The script
// sees one global, fx, with spawn, kill_all, count, capacity, uniform and normal.
// Every run starts from an empty engine.
type Emitter struct {
	path     string
	source   []byte
	compiled *tengo.Compiled
	static   *particles.StaticEngine
	sampler  *particles.Sampler
	log      Logger

	stats EmitterStats
}

// NewEmitter compiles source. An empty path marks the source as built in; Reload then
// recompiles the same source.
func NewEmitter(static *particles.StaticEngine, source []byte, path string, seed uint64, log Logger) (*Emitter, error) {
	if log == nil {
		log = NewNopLogger()
	}
	e := &Emitter{
		path:    path,
		static:  static,
		sampler: particles.NewSampler(seed),
		log:     log,
	}
	if err := e.compile(source); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Emitter) Path() string        { return e.path }
func (e *Emitter) Stats() EmitterStats { return e.stats }

func (e *Emitter) compile(source []byte) error {
	script := tengo.NewScript(source)
	if err := script.Add("fx", e.api()); err != nil {
		return fmt.Errorf("emitter script: %w", err)
	}
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return fmt.Errorf("compiling emitter script %s: %w", e.name(), err)
	}
	e.source = source
	e.compiled = compiled
	return nil
}

func (e *Emitter) name() string {
	if e.path == "" {
		return "(builtin)"
	}
	return e.path
}

// Run clears the particles of the previous run and executes the script.
func (e *Emitter) Run() error {
	if e.compiled == nil {
		return errors.New("emitter script not compiled")
	}
	if err := e.static.KillAll(); err != nil {
		return fmt.Errorf("emitter reset: %w", err)
	}
	e.stats.Spawned = 0
	e.stats.Dropped = 0

	if err := e.compiled.Run(); err != nil {
		return fmt.Errorf("running emitter script %s: %w", e.name(), err)
	}
	e.stats.Runs++

	if e.stats.Dropped > 0 {
		e.log.Warnf("emitter %s: %d spawns dropped, pool full at %d", e.name(), e.stats.Dropped, e.static.Count())
	}
	e.log.Infof("emitter %s: %d particles spawned", e.name(), e.stats.Spawned)
	return nil
}

// Reload rereads the script file, recompiles and runs it. On a compile error the previous
// particles and script are kept.
func (e *Emitter) Reload() error {
	source := e.source
	if e.path != "" {
		data, err := os.ReadFile(e.path)
		if err != nil {
			return fmt.Errorf("reading emitter script: %w", err)
		}
		source = data
	}
	if err := e.compile(source); err != nil {
		return err
	}
	return e.Run()
}

func (e *Emitter) api() *tengo.ImmutableMap {
	values := map[string]tengo.Object{}

	// spawn(pos, color, size) reports whether the particle was placed.
	values["spawn"] = &tengo.UserFunction{Name: "spawn", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 3 {
			return nil, tengo.ErrWrongNumArguments
		}
		pos, ok := vecArg(args[0], 3)
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "pos", Expected: "array(3)", Found: args[0].TypeName()}
		}
		color, ok := vecArg(args[1], 4)
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "color", Expected: "array(4)", Found: args[1].TypeName()}
		}
		size, ok := tengo.ToFloat64(args[2])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "size", Expected: "float", Found: args[2].TypeName()}
		}

		_, err := e.static.Spawn(particles.ParticleVertex{
			Pos:   mgl32.Vec3{pos[0], pos[1], pos[2]},
			Color: mgl32.Vec4{color[0], color[1], color[2], color[3]},
			Size:  float32(size),
		})
		if errors.Is(err, particles.ErrPoolExhausted) {
			e.stats.Dropped++
			return tengo.FalseValue, nil
		}
		if err != nil {
			return nil, err
		}
		e.stats.Spawned++
		return tengo.TrueValue, nil
	}}

	values["kill_all"] = &tengo.UserFunction{Name: "kill_all", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if err := e.static.KillAll(); err != nil {
			return nil, err
		}
		return tengo.UndefinedValue, nil
	}}

	values["count"] = &tengo.UserFunction{Name: "count", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Int{Value: int64(e.static.Count())}, nil
	}}

	values["capacity"] = &tengo.UserFunction{Name: "capacity", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if e.static.Pool() == nil {
			return &tengo.Int{Value: 0}, nil
		}
		return &tengo.Int{Value: int64(e.static.Pool().Capacity())}, nil
	}}

	values["uniform"] = &tengo.UserFunction{Name: "uniform", Value: func(args ...tengo.Object) (tengo.Object, error) {
		lo, hi, err := floatPair(args)
		if err != nil {
			return nil, err
		}
		return &tengo.Float{Value: float64(e.sampler.Uniform(lo, hi))}, nil
	}}

	values["normal"] = &tengo.UserFunction{Name: "normal", Value: func(args ...tengo.Object) (tengo.Object, error) {
		mean, sigma, err := floatPair(args)
		if err != nil {
			return nil, err
		}
		return &tengo.Float{Value: float64(e.sampler.Normal(mean, sigma))}, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}

func floatPair(args []tengo.Object) (float32, float32, error) {
	if len(args) != 2 {
		return 0, 0, tengo.ErrWrongNumArguments
	}
	a, ok := tengo.ToFloat64(args[0])
	if !ok {
		return 0, 0, tengo.ErrInvalidArgumentType{Name: "first", Expected: "float", Found: args[0].TypeName()}
	}
	b, ok := tengo.ToFloat64(args[1])
	if !ok {
		return 0, 0, tengo.ErrInvalidArgumentType{Name: "second", Expected: "float", Found: args[1].TypeName()}
	}
	return float32(a), float32(b), nil
}

// vecArg reads an array of exactly n numbers.
func vecArg(obj tengo.Object, n int) ([]float32, bool) {
	var elems []tengo.Object
	switch v := obj.(type) {
	case *tengo.Array:
		elems = v.Value
	case *tengo.ImmutableArray:
		elems = v.Value
	default:
		return nil, false
	}
	if len(elems) != n {
		return nil, false
	}
	out := make([]float32, n)
	for i, el := range elems {
		f, ok := tengo.ToFloat64(el)
		if !ok {
			return nil, false
		}
		out[i] = float32(f)
	}
	return out, true
}

// ScriptModule runs the emitter script once the pool engine has started. It needs
// pool mode. An empty Path runs the built-in hemispheres script.
type ScriptModule struct {
	Path string
	Seed uint64
}

func (m ScriptModule) Install(app *App) error {
	if app.Mode() != ModePool {
		return fmt.Errorf("emitter script needs %s mode, app is in %s mode", ModePool, app.Mode())
	}
	source := defaultEmitterScript
	if m.Path != "" {
		data, err := os.ReadFile(m.Path)
		if err != nil {
			return fmt.Errorf("reading emitter script: %w", err)
		}
		source = data
	}
	em, err := NewEmitter(app.StaticEngine(), source, m.Path, m.Seed, app.Logger())
	if err != nil {
		return err
	}
	app.addResources(em)
	app.OnStartup(func(app *App) error { return em.Run() })
	return nil
}
