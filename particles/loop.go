package particles

import (
	"sync"
	"sync/atomic"
	"time"
)

// loop runs a step function on its own goroutine until halted. Cancellation is whole-loop:
// the running flag is polled once per iteration and a tick is never interrupted.
type loop struct {
	mu      sync.Mutex // serializes start/halt
	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// start launches the goroutine. It returns false if the loop was already running.
func (l *loop) start(delay, interval time.Duration, clock Clock, step func(dt time.Duration)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running.Load() {
		return false
	}
	l.running.Store(true)
	l.stop = make(chan struct{})
	l.wg.Add(1)
	go l.run(delay, interval, clock, step, l.stop)
	return true
}

func (l *loop) run(delay, interval time.Duration, clock Clock, step func(dt time.Duration), stop <-chan struct{}) {
	defer l.wg.Done()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-stop:
			return
		}
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	last := clock()
	for l.running.Load() {
		if tick != nil {
			select {
			case <-tick:
			case <-stop:
				return
			}
		}
		now := clock()
		step(now.Sub(last))
		last = now
	}
}

// halt clears the running flag and joins the goroutine. It returns false if the loop
// was not running.
func (l *loop) halt() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running.Load() {
		return false
	}
	l.running.Store(false)
	close(l.stop)
	l.wg.Wait()
	return true
}

func (l *loop) isRunning() bool { return l.running.Load() }
