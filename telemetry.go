package fountain

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
)

// TelemetryRow is one sample of the running strategy.
type TelemetryRow struct {
	ElapsedS    float64 `csv:"elapsed_s"`
	Frame       uint64  `csv:"frame"`
	Mode        string  `csv:"mode"`
	VertexCount uint32  `csv:"vertex_count"`
	Alive       int     `csv:"alive"`
	Iterations  uint64  `csv:"iterations"`
	Respawns    uint64  `csv:"respawns"`
	Allocated   int     `csv:"allocated"`
	Dropped     int     `csv:"dropped"`
	FPS         float64 `csv:"fps"`
}

// Telemetry appends TelemetryRow records as CSV. The header is written with the first row.
type Telemetry struct {
	out           io.Writer
	closer        io.Closer
	interval      time.Duration
	headerWritten bool

	lastSample time.Time
	lastFrame  uint64
	rows       int
}

// NewTelemetry writes rows to w at most once per interval.
func NewTelemetry(w io.Writer, interval time.Duration) *Telemetry {
	t := &Telemetry{out: w, interval: interval}
	if c, ok := w.(io.Closer); ok {
		t.closer = c
	}
	return t
}

// Write appends one row.
func (t *Telemetry) Write(row TelemetryRow) error {
	records := []TelemetryRow{row}
	if !t.headerWritten {
		if err := gocsv.Marshal(records, t.out); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		t.headerWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, t.out); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
	}
	t.rows++
	return nil
}

func (t *Telemetry) Rows() int { return t.rows }

// sample writes a row if the interval has passed since the last one, or if force is set.
func (t *Telemetry) sample(app *App, now time.Time, force bool) error {
	if t.lastSample.IsZero() {
		t.lastSample = now
		t.lastFrame = app.time.Frame
		if !force {
			return nil
		}
	}
	elapsed := now.Sub(t.lastSample)
	if !force && elapsed < t.interval {
		return nil
	}

	row := rowFromStats(app.Stats())
	row.ElapsedS = app.time.Elapsed().Seconds()
	row.Frame = app.time.Frame
	if elapsed > 0 {
		row.FPS = float64(app.time.Frame-t.lastFrame) / elapsed.Seconds()
	}
	if em, ok := Resource[Emitter](app); ok {
		row.Dropped = em.Stats().Dropped
	}

	t.lastSample = now
	t.lastFrame = app.time.Frame
	return t.Write(row)
}

func rowFromStats(s Stats) TelemetryRow {
	return TelemetryRow{
		Mode:        string(s.Mode),
		VertexCount: s.VertexCount,
		Alive:       s.Alive,
		Iterations:  s.Iterations,
		Respawns:    s.Respawns,
		Allocated:   s.Allocated,
	}
}

func (t *Telemetry) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// TelemetryModule samples App.Stats into a CSV file. An empty Path disables it.
type TelemetryModule struct {
	Path     string
	Interval time.Duration
	Writer   io.Writer // used instead of Path when set
}

func (m TelemetryModule) Install(app *App) error {
	w := m.Writer
	if w == nil {
		if m.Path == "" {
			return nil
		}
		if dir := filepath.Dir(m.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating telemetry directory: %w", err)
			}
		}
		f, err := os.Create(m.Path)
		if err != nil {
			return fmt.Errorf("creating telemetry file: %w", err)
		}
		w = f
	}
	interval := m.Interval
	if interval <= 0 {
		interval = time.Second
	}

	t := NewTelemetry(w, interval)
	app.addResources(t)

	app.OnUpdate(func(app *App, now *Time) {
		if err := t.sample(app, now.Time, false); err != nil {
			app.Logger().Warnf("telemetry: %v", err)
		}
	})
	app.OnShutdown(func(app *App) error {
		var err error
		if app.time.Frame > 0 {
			err = t.sample(app, app.time.Time, true)
		}
		if cerr := t.Close(); err == nil {
			err = cerr
		}
		app.Logger().Infof("telemetry: %d rows written", t.Rows())
		return err
	})
	return nil
}
