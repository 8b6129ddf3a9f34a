package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"studiocharts/internal/animate"
	"studiocharts/internal/core"
)

var ErrStreamingUnsupported = errors.New("streaming not supported")

// WriteTimeout bounds every event write so a viewer that stops reading fails
// its run instead of holding it open.
const WriteTimeout = 10 * time.Second

// Stream event types.
const (
	EventBegin   = "begin"
	EventRestyle = "restyle"
	EventExtend  = "extend"
	EventFinish  = "finish"
	EventEnd     = "end"
	EventError   = "error"
)

// StreamEvent is one server-sent event. The browser applies begin as
// Plotly.newPlot, restyle as Plotly.restyle on marker.size and extend as
// Plotly.extendTraces.
type StreamEvent struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type (
	beginData struct {
		Frames int     `json:"frames"`
		Traces []Trace `json:"traces"`
		Layout Layout  `json:"layout"`
	}
	restyleData struct {
		Trace int      `json:"trace"`
		Sizes []Number `json:"sizes"`
	}
	extendData struct {
		Trace int      `json:"trace"`
		X     []int    `json:"x"`
		Y     []Number `json:"y"`
		Text  []string `json:"text"`
		Tones []Number `json:"tones"`
	}
)

// SSESink streams an animation run to one client as server-sent events.
type SSESink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	flusher http.Flusher
	colors  Colors
	layout  Layout
	now     func() time.Time
}

// NewSSESink writes the event-stream headers to w. colors and layout style
// the traces announced by Begin.
func NewSSESink(w http.ResponseWriter, colors Colors, layout Layout) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSESink{
		w:       w,
		rc:      http.NewResponseController(w),
		flusher: flusher,
		colors:  colors,
		layout:  layout,
		now:     time.Now,
	}, nil
}

// Send writes one event and flushes it.
func (s *SSESink) Send(ev StreamEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rc.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("set %s deadline: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, b); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Type, err)
	}
	s.flusher.Flush()
	return nil
}

func (s *SSESink) Begin(run *animate.Run, series []core.Series) error {
	traces := make([]Trace, len(series))
	for i, sr := range series {
		traces[i] = EmptyTrace(sr.Category, s.colors[sr.Category])
	}
	return s.Send(StreamEvent{
		Type:  EventBegin,
		RunID: run.ID,
		Data:  beginData{Frames: run.Frames, Traces: traces, Layout: s.layout},
	})
}

func (s *SSESink) Restyle(run *animate.Run, trace int, sizes []float64) error {
	return s.Send(StreamEvent{
		Type:  EventRestyle,
		RunID: run.ID,
		Data:  restyleData{Trace: trace, Sizes: Numbers(sizes)},
	})
}

func (s *SSESink) Extend(run *animate.Run, trace int, points []core.TimeSeriesPoint) error {
	d := extendData{
		Trace: trace,
		X:     make([]int, len(points)),
		Y:     make([]Number, len(points)),
		Text:  make([]string, len(points)),
		Tones: make([]Number, len(points)),
	}
	for i, p := range points {
		d.X[i] = p.Year
		d.Y[i] = Number(p.Value)
		d.Text[i] = HoverText(p)
		d.Tones[i] = Number(ToneFrequency(p))
	}
	return s.Send(StreamEvent{Type: EventExtend, RunID: run.ID, Data: d})
}

func (s *SSESink) Finish(run *animate.Run) error {
	return s.Send(StreamEvent{
		Type:  EventFinish,
		RunID: run.ID,
		Data:  map[string]any{"frames": run.Frames},
	})
}

var _ animate.Sink = (*SSESink)(nil)
