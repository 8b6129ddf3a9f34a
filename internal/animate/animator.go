// Package animate replays per-category time series one release year at a
// time, growing the visible traces of a rendering Sink on a fixed timer.
//
// An Animator runs at most one replay at a time. Every run carries the
// generation token current when it started; Cancel bumps the generation and
// the run compares tokens under the animator mutex before every Sink call.
// Sink calls themselves run outside the mutex, so Cancel never waits on a
// slow Sink: a call already past its check may still complete, but the
// superseded run starts no further call.
package animate

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"studiocharts/internal/core"
	"studiocharts/internal/log"
)

const (
	DefaultInterval = 30 * time.Millisecond
	DefaultDecayK   = 50.0
)

// ErrRunning is returned by Start while a run is active. The request is
// dropped, not queued.
var ErrRunning = errors.New("animation already running")

// ErrCancelled is reported by a run that was superseded before completing.
var ErrCancelled = errors.New("animation cancelled")

// State of an Animator.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Sink is the rendering collaborator driven by a run. Begin is equivalent to
// purging the plot and recreating it with one empty trace per series; trace
// indexes in later calls refer to that order.
type Sink interface {
	Begin(run *Run, series []core.Series) error
	Restyle(run *Run, trace int, sizes []float64) error
	Extend(run *Run, trace int, points []core.TimeSeriesPoint) error
	Finish(run *Run) error
}

// Config tunes the replay.
type Config struct {
	// Interval is the fixed delay between ticks.
	Interval time.Duration
	// DecayK scales marker sizes by max(1, DecayK/revealed).
	DecayK float64
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.DecayK <= 0 {
		c.DecayK = DefaultDecayK
	}
	return c
}

// Run describes one replay.
type Run struct {
	ID     string
	Frames int
	Series int

	token uint64
	stop  chan struct{}
	done  chan struct{}

	// written before done is closed
	completed bool
	revealed  int
	err       error
}

// Done is closed when the run ends for any reason.
func (r *Run) Done() <-chan struct{} { return r.done }

// Completed reports whether every frame was drawn. Valid once Done is closed.
func (r *Run) Completed() bool { return r.completed }

// Revealed is the number of points drawn. Valid once Done is closed.
func (r *Run) Revealed() int { return r.revealed }

// Err is nil for a completed run, ErrCancelled for a superseded one, or the
// context or sink error that stopped it. Valid once Done is closed.
func (r *Run) Err() error { return r.err }

// Animator owns the Idle/Running state machine.
type Animator struct {
	mu      sync.Mutex
	sink    Sink
	cfg     Config
	logger  *log.Logger
	gen     uint64
	current *Run
}

// New creates an idle Animator drawing onto sink.
func New(sink Sink, cfg Config, logger *log.Logger) *Animator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Animator{
		sink:   sink,
		cfg:    cfg.withDefaults(),
		logger: logger.WithComponent(log.ComponentAnimate),
	}
}

// State returns Running while a run is in progress.
func (a *Animator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		return Running
	}
	return Idle
}

// Start snapshots series and begins a run. It returns ErrRunning, without
// side effects, when a run is already active.
func (a *Animator) Start(ctx context.Context, series []core.Series) (*Run, error) {
	a.mu.Lock()
	if a.current != nil {
		a.mu.Unlock()
		return nil, ErrRunning
	}
	run, snapshot, frames := a.prepareLocked(series)
	a.mu.Unlock()

	return a.begin(ctx, run, snapshot, frames)
}

// Restart supersedes any active run and starts a new one.
func (a *Animator) Restart(ctx context.Context, series []core.Series) (*Run, error) {
	a.mu.Lock()
	a.cancelLocked()
	run, snapshot, frames := a.prepareLocked(series)
	a.mu.Unlock()

	return a.begin(ctx, run, snapshot, frames)
}

// Cancel invalidates the active run, if any. Pending ticks of that run abort
// without touching the sink. It does not wait for a Sink call in progress.
func (a *Animator) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelLocked()
}

func (a *Animator) cancelLocked() {
	a.gen++
	if a.current != nil {
		close(a.current.stop)
		a.logger.Debug("Animation cancelled", log.FieldRunID, a.current.ID)
		a.current = nil
	}
}

// prepareLocked registers a new run as current so a concurrent Start sees
// Running while Begin is still writing.
func (a *Animator) prepareLocked(series []core.Series) (*Run, []core.Series, []Frame) {
	snapshot := Snapshot(series)
	frames := BuildFrames(snapshot)

	a.gen++
	run := &Run{
		ID:     uuid.NewString(),
		Frames: len(frames),
		Series: len(snapshot),
		token:  a.gen,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	a.current = run
	return run, snapshot, frames
}

func (a *Animator) begin(ctx context.Context, run *Run, snapshot []core.Series, frames []Frame) (*Run, error) {
	err := ErrCancelled
	if a.live(run) {
		err = a.sink.Begin(run, snapshot)
	}
	if err != nil {
		a.mu.Lock()
		if a.current == run {
			a.current = nil
		}
		run.err = err
		close(run.done)
		a.mu.Unlock()
		return nil, err
	}

	a.logger.InfoContext(ctx, "Animation started",
		log.FieldRunID, run.ID,
		log.FieldFrames, run.Frames,
		"series", run.Series)

	go a.loop(ctx, run, snapshot, frames)
	return run, nil
}

// progress is the per-run drawing state, owned by the run goroutine.
type progress struct {
	sizes    [][]float64
	revealed int
}

func (a *Animator) loop(ctx context.Context, run *Run, series []core.Series, frames []Frame) {
	p := &progress{sizes: make([][]float64, len(series))}

	timer := time.NewTimer(0)
	defer timer.Stop()

	// One tick per frame plus a terminal tick that returns to Idle.
	for i := 0; i <= len(frames); i++ {
		if i > 0 {
			timer.Reset(a.cfg.Interval)
		}
		select {
		case <-ctx.Done():
			a.finish(run, p, ctx.Err())
			return
		case <-run.stop:
			a.finish(run, p, ErrCancelled)
			return
		case <-timer.C:
		}

		if i == len(frames) {
			a.finish(run, p, nil)
			return
		}
		if err := a.tick(run, p, frames[i]); err != nil {
			a.finish(run, p, err)
			return
		}
	}
}

// live reports whether run is still the current generation.
func (a *Animator) live(run *Run) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen == run.token
}

// tick draws one frame while run is still the current generation.
func (a *Animator) tick(run *Run, p *progress, f Frame) error {
	if !a.live(run) {
		return ErrCancelled
	}
	for _, b := range f.Batches {
		if len(b.Points) == 0 {
			continue
		}
		p.revealed += len(b.Points)
		for _, pt := range b.Points {
			p.sizes[b.Series] = append(p.sizes[b.Series], pt.Size())
		}
		scale := math.Max(1, a.cfg.DecayK/float64(p.revealed))
		scaled := make([]float64, len(p.sizes[b.Series]))
		for i, s := range p.sizes[b.Series] {
			scaled[i] = s * scale
		}

		if !a.live(run) {
			return ErrCancelled
		}
		if err := a.sink.Restyle(run, b.Series, scaled); err != nil {
			return err
		}
		if !a.live(run) {
			return ErrCancelled
		}
		if err := a.sink.Extend(run, b.Series, b.Points); err != nil {
			return err
		}
	}
	a.logger.Debug("Frame drawn",
		log.FieldRunID, run.ID,
		log.FieldYear, f.Year,
		log.FieldRevealed, p.revealed)
	return nil
}

func (a *Animator) finish(run *Run, p *progress, err error) {
	if err == nil {
		if !a.live(run) {
			err = ErrCancelled
		} else if ferr := a.sink.Finish(run); ferr != nil {
			err = ferr
		}
	}

	a.mu.Lock()
	if a.current == run {
		a.current = nil
	}
	run.revealed = p.revealed
	run.completed = err == nil
	run.err = err
	close(run.done)
	a.mu.Unlock()

	if err != nil && !errors.Is(err, ErrCancelled) {
		a.logger.Warn("Animation stopped", log.FieldRunID, run.ID, log.FieldRevealed, p.revealed, log.FieldError, err)
		return
	}
	a.logger.Info("Animation finished",
		log.FieldRunID, run.ID,
		log.FieldRevealed, p.revealed,
		"completed", run.completed)
}
