package chart

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiocharts/internal/animate"
	"studiocharts/internal/core"
)

type decodedEvent struct {
	Name  string
	Event struct {
		Type  string          `json:"type"`
		RunID string          `json:"run_id"`
		Data  json.RawMessage `json:"data"`
	}
}

func readEvents(t *testing.T, body string) []decodedEvent {
	t.Helper()
	var (
		out []decodedEvent
		cur decodedEvent
	)
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &cur.Event))
		case line == "":
			if cur.Name != "" {
				out = append(out, cur)
			}
			cur = decodedEvent{}
		}
	}
	return out
}

func TestNewSSESinkHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	_, err := NewSSESink(rec, nil, Layout{})

	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)
}

type plainWriter struct{ http.ResponseWriter }

func TestNewSSESinkRequiresFlusher(t *testing.T) {
	_, err := NewSSESink(plainWriter{httptest.NewRecorder()}, nil, Layout{})
	assert.ErrorIs(t, err, ErrStreamingUnsupported)
}

func TestSSESinkStreamsRun(t *testing.T) {
	series := []core.Series{
		{Category: "Disney", Points: []core.TimeSeriesPoint{
			{Category: "Disney", Year: 2019, Value: 2797.5, Label: "Avengers: Endgame", Director: "Anthony Russo"},
			{Category: "Disney", Year: 2015, Value: 2068.2, Label: "Star Wars", Director: core.UnknownDirector},
		}},
		{Category: "Universal", Points: []core.TimeSeriesPoint{
			{Category: "Universal", Year: 2015, Value: 1671.5, Label: "Jurassic World", Director: "Colin Trevorrow"},
		}},
	}
	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec, StudioColors([]string{"Disney", "Universal"}), ScatterLayout(2015, 2019))
	require.NoError(t, err)

	a := animate.New(sink, animate.Config{Interval: time.Millisecond}, nil)
	run, err := a.Start(context.Background(), series)
	require.NoError(t, err)

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	require.NoError(t, run.Err())

	events := readEvents(t, rec.Body.String())
	var names []string
	for _, ev := range events {
		names = append(names, ev.Name)
		assert.Equal(t, ev.Name, ev.Event.Type)
		assert.Equal(t, run.ID, ev.Event.RunID)
	}
	// 2015 reveals both studios, 2019 reveals Disney again.
	assert.Equal(t, []string{
		EventBegin,
		EventRestyle, EventExtend,
		EventRestyle, EventExtend,
		EventRestyle, EventExtend,
		EventFinish,
	}, names)

	var begin beginData
	require.NoError(t, json.Unmarshal(events[0].Event.Data, &begin))
	assert.Equal(t, 2, begin.Frames)
	require.Len(t, begin.Traces, 2)
	assert.Equal(t, "Universal", begin.Traces[1].Name)

	var ext extendData
	require.NoError(t, json.Unmarshal(events[2].Event.Data, &ext))
	assert.Equal(t, 0, ext.Trace)
	assert.Equal(t, []int{2015}, ext.X)
	require.Len(t, ext.Tones, 1)
	assert.InDelta(t, 200+2068.2/7*10, float64(ext.Tones[0]), 1e-9)
	assert.Contains(t, ext.Text[0], "Director: Desconocido")
}

func TestSSESinkStreamsInfiniteRevenue(t *testing.T) {
	movies := core.NewTable(core.MovieColumns, [][]string{
		{"Disney", "2019", "Infinity", "Avengers: Endgame", "Anthony Russo"},
		{"Disney", "2019", "1e400", "The Lion King", "Jon Favreau"},
	})
	var points []core.TimeSeriesPoint
	for _, r := range movies.Records {
		p, ok := core.PointFromRecord(r)
		require.True(t, ok, "infinite revenue is kept")
		points = append(points, p)
	}
	series := []core.Series{{Category: "Disney", Points: points}}

	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec, StudioColors([]string{"Disney"}), ScatterLayout(2019, 2019))
	require.NoError(t, err)

	a := animate.New(sink, animate.Config{Interval: time.Millisecond}, nil)
	run, err := a.Start(context.Background(), series)
	require.NoError(t, err)
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	require.NoError(t, run.Err())
	assert.True(t, run.Completed())

	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 4)
	require.Equal(t, EventExtend, events[2].Name)
	assert.Contains(t, string(events[2].Event.Data), `"tones":[null,null]`)
	assert.Contains(t, string(events[2].Event.Data), `"y":[null,null]`)
	assert.Equal(t, EventFinish, events[3].Name)
}
