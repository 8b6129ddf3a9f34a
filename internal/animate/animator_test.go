package animate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiocharts/internal/core"
)

type call struct {
	kind   string
	trace  int
	sizes  []float64
	points []core.TimeSeriesPoint
}

type recordingSink struct {
	mu       sync.Mutex
	calls    []call
	begun    int
	finished int
	failOn   string
}

func (s *recordingSink) Begin(_ *Run, _ []core.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begun++
	return nil
}

func (s *recordingSink) Restyle(_ *Run, trace int, sizes []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "restyle" {
		return errors.New("sink closed")
	}
	s.calls = append(s.calls, call{kind: "restyle", trace: trace, sizes: sizes})
	return nil
}

func (s *recordingSink) Extend(_ *Run, trace int, points []core.TimeSeriesPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{kind: "extend", trace: trace, points: points})
	return nil
}

func (s *recordingSink) Finish(_ *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished++
	return nil
}

func (s *recordingSink) snapshot() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func (s *recordingSink) restyles() []call {
	var out []call
	for _, c := range s.snapshot() {
		if c.kind == "restyle" {
			out = append(out, c)
		}
	}
	return out
}

func pt(cat string, year int, value float64) core.TimeSeriesPoint {
	return core.TimeSeriesPoint{Category: cat, Year: year, Value: value, Label: cat, Director: core.UnknownDirector}
}

func waitDone(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func fast() Config { return Config{Interval: time.Millisecond, DecayK: 50} }

func TestBuildFrames(t *testing.T) {
	series := []core.Series{{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 7), pt("A", 2001, 7), pt("A", 2001, 14)}}}

	frames := BuildFrames(series)

	require.Len(t, frames, 2)
	assert.Equal(t, 2000, frames[0].Year)
	assert.Equal(t, 1, frames[0].Count())
	assert.Equal(t, 2001, frames[1].Year)
	assert.Equal(t, 2, frames[1].Count())
	require.Len(t, frames[1].Batches, 1, "same-series points share a batch")
}

func TestBuildFramesSortsYearsAcrossSeries(t *testing.T) {
	series := []core.Series{
		{Category: "B", Points: []core.TimeSeriesPoint{pt("B", 2010, 1)}},
		{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 1995, 1), pt("A", 2010, 2)}},
	}

	frames := BuildFrames(series)

	require.Len(t, frames, 2)
	assert.Equal(t, 1995, frames[0].Year)
	require.Len(t, frames[1].Batches, 2)
	assert.Equal(t, 0, frames[1].Batches[0].Series)
	assert.Equal(t, 1, frames[1].Batches[1].Series)
}

func TestSnapshotIsIndependent(t *testing.T) {
	series := []core.Series{{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 7)}}}

	snap := Snapshot(series)
	series[0].Points[0].Value = 1000
	series[0].Category = "changed"

	assert.Equal(t, "A", snap[0].Category)
	assert.Equal(t, 7.0, snap[0].Points[0].Value)
}

func TestAnimatorRevealsEveryPoint(t *testing.T) {
	sink := &recordingSink{}
	a := New(sink, fast(), nil)
	series := []core.Series{{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 7), pt("A", 2001, 7), pt("A", 2001, 14)}}}

	run, err := a.Start(context.Background(), series)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Frames)
	waitDone(t, run)

	require.NoError(t, run.Err())
	assert.True(t, run.Completed())
	assert.Equal(t, 3, run.Revealed())
	assert.Equal(t, Idle, a.State())
	assert.Equal(t, 1, sink.finished)

	var extended []int
	for _, c := range sink.snapshot() {
		if c.kind == "extend" {
			extended = append(extended, len(c.points))
		}
	}
	assert.Equal(t, []int{1, 2}, extended)
}

func TestAnimatorDecay(t *testing.T) {
	sink := &recordingSink{}
	a := New(sink, fast(), nil)
	series := []core.Series{
		{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 70), pt("A", 2001, 140)}},
		{Category: "B", Points: []core.TimeSeriesPoint{pt("B", 2001, 7)}},
	}

	run, err := a.Start(context.Background(), series)
	require.NoError(t, err)
	waitDone(t, run)
	require.NoError(t, run.Err())

	restyles := sink.restyles()
	require.Len(t, restyles, 3)

	assert.Equal(t, 0, restyles[0].trace)
	assert.InDeltaSlice(t, []float64{500}, restyles[0].sizes, 1e-9)

	assert.Equal(t, 0, restyles[1].trace)
	assert.InDeltaSlice(t, []float64{250, 500}, restyles[1].sizes, 1e-9)

	assert.Equal(t, 1, restyles[2].trace)
	assert.InDeltaSlice(t, []float64{50.0 / 3}, restyles[2].sizes, 1e-9)
}

func TestAnimatorDecayFloorsAtOne(t *testing.T) {
	sink := &recordingSink{}
	a := New(sink, Config{Interval: time.Millisecond, DecayK: 1}, nil)
	series := []core.Series{{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 70), pt("A", 2001, 70)}}}

	run, err := a.Start(context.Background(), series)
	require.NoError(t, err)
	waitDone(t, run)

	restyles := sink.restyles()
	require.Len(t, restyles, 2)
	assert.InDeltaSlice(t, []float64{10, 10}, restyles[1].sizes, 1e-9)
}

func TestAnimatorIgnoresReentrantStart(t *testing.T) {
	sink := &recordingSink{}
	a := New(sink, Config{Interval: time.Hour}, nil)
	series := []core.Series{{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 7), pt("A", 2001, 7)}}}

	run, err := a.Start(context.Background(), series)
	require.NoError(t, err)
	assert.Equal(t, Running, a.State())

	again, err := a.Start(context.Background(), series)
	assert.ErrorIs(t, err, ErrRunning)
	assert.Nil(t, again)
	assert.Equal(t, 1, sink.begun)

	a.Cancel()
	waitDone(t, run)
}

func TestAnimatorCancelStopsDrawing(t *testing.T) {
	sink := &recordingSink{}
	a := New(sink, Config{Interval: time.Hour}, nil)
	series := []core.Series{{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 7), pt("A", 2001, 7), pt("A", 2002, 7)}}}

	run, err := a.Start(context.Background(), series)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, time.Millisecond)

	a.Cancel()
	waitDone(t, run)

	assert.ErrorIs(t, run.Err(), ErrCancelled)
	assert.False(t, run.Completed())
	assert.Equal(t, 1, run.Revealed())
	assert.Equal(t, Idle, a.State())
	assert.Len(t, sink.snapshot(), 2)
	assert.Zero(t, sink.finished)
}

func TestAnimatorRestartSupersedes(t *testing.T) {
	sink := &recordingSink{}
	a := New(sink, Config{Interval: time.Hour}, nil)
	series := []core.Series{{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 7), pt("A", 2001, 7)}}}

	first, err := a.Start(context.Background(), series)
	require.NoError(t, err)

	second, err := a.Restart(context.Background(), series)
	require.NoError(t, err)
	waitDone(t, first)

	assert.ErrorIs(t, first.Err(), ErrCancelled)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, Running, a.State())

	a.Cancel()
	waitDone(t, second)
}

func TestAnimatorContextCancel(t *testing.T) {
	sink := &recordingSink{}
	a := New(sink, Config{Interval: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	series := []core.Series{{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 7), pt("A", 2001, 7)}}}

	run, err := a.Start(ctx, series)
	require.NoError(t, err)
	cancel()
	waitDone(t, run)

	assert.ErrorIs(t, run.Err(), context.Canceled)
	assert.Equal(t, Idle, a.State())
}

func TestAnimatorSinkErrorAborts(t *testing.T) {
	sink := &recordingSink{failOn: "restyle"}
	a := New(sink, fast(), nil)
	series := []core.Series{{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 7)}}}

	run, err := a.Start(context.Background(), series)
	require.NoError(t, err)
	waitDone(t, run)

	assert.EqualError(t, run.Err(), "sink closed")
	assert.Equal(t, Idle, a.State())
}

func TestAnimatorEmptyInputCompletes(t *testing.T) {
	sink := &recordingSink{}
	a := New(sink, fast(), nil)

	run, err := a.Start(context.Background(), nil)
	require.NoError(t, err)
	waitDone(t, run)

	assert.True(t, run.Completed())
	assert.Empty(t, sink.snapshot())
	assert.Equal(t, 1, sink.finished)
}

func TestAnimatorSnapshotsInput(t *testing.T) {
	sink := &recordingSink{}
	a := New(sink, Config{Interval: 5 * time.Millisecond}, nil)
	series := []core.Series{{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 7), pt("A", 2001, 14)}}}

	run, err := a.Start(context.Background(), series)
	require.NoError(t, err)
	series[0].Points[1].Value = 7000
	waitDone(t, run)

	for _, c := range sink.snapshot() {
		for _, p := range c.points {
			assert.NotEqual(t, 7000.0, p.Value)
		}
	}
}

// stallingSink blocks in Extend until release is closed.
type stallingSink struct {
	recordingSink
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stallingSink) Extend(run *Run, trace int, points []core.TimeSeriesPoint) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.recordingSink.Extend(run, trace, points)
}

func TestAnimatorCancelDoesNotWaitForStalledSink(t *testing.T) {
	sink := &stallingSink{entered: make(chan struct{}), release: make(chan struct{})}
	a := New(sink, fast(), nil)
	series := []core.Series{{Category: "A", Points: []core.TimeSeriesPoint{pt("A", 2000, 7), pt("A", 2001, 7), pt("A", 2002, 7)}}}

	run, err := a.Start(context.Background(), series)
	require.NoError(t, err)

	select {
	case <-sink.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("sink was never written to")
	}

	cancelled := make(chan struct{})
	go func() {
		a.Cancel()
		close(cancelled)
	}()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		close(sink.release)
		t.Fatal("Cancel blocked on a stalled sink write")
	}
	assert.Equal(t, Idle, a.State())

	// A new run may start while the old write is still stuck.
	_, err = a.Start(context.Background(), nil)
	require.NoError(t, err)

	close(sink.release)
	waitDone(t, run)

	assert.ErrorIs(t, run.Err(), ErrCancelled)
	assert.Equal(t, 1, run.Revealed())
	// Only the write in flight at Cancel landed; no later frame did.
	assert.Len(t, sink.snapshot(), 2)
	assert.False(t, run.Completed())
}
