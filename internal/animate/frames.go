package animate

import (
	"sort"

	"studiocharts/internal/core"
)

// Frame is one animation step: every point released in Year, grouped by the
// series (trace) it belongs to.
type Frame struct {
	Year    int
	Batches []Batch
}

// Batch is the slice of one series revealed by a frame.
type Batch struct {
	Series int
	Points []core.TimeSeriesPoint
}

// Count returns how many points the frame reveals.
func (f Frame) Count() int {
	n := 0
	for _, b := range f.Batches {
		n += len(b.Points)
	}
	return n
}

// BuildFrames returns one frame per distinct year found across all series,
// ascending. Within a frame batches follow series order and points keep their
// order inside the series.
func BuildFrames(series []core.Series) []Frame {
	seen := make(map[int]struct{})
	var years []int
	for _, s := range series {
		for _, p := range s.Points {
			if _, ok := seen[p.Year]; ok {
				continue
			}
			seen[p.Year] = struct{}{}
			years = append(years, p.Year)
		}
	}
	sort.Ints(years)

	frames := make([]Frame, len(years))
	index := make(map[int]int, len(years))
	for i, y := range years {
		frames[i].Year = y
		index[y] = i
	}
	for si, s := range series {
		for _, p := range s.Points {
			fi := index[p.Year]
			f := &frames[fi]
			if n := len(f.Batches); n > 0 && f.Batches[n-1].Series == si {
				f.Batches[n-1].Points = append(f.Batches[n-1].Points, p)
				continue
			}
			f.Batches = append(f.Batches, Batch{Series: si, Points: []core.TimeSeriesPoint{p}})
		}
	}
	return frames
}

// Snapshot deep-copies series so later changes to the source cannot leak into
// a run in progress.
func Snapshot(series []core.Series) []core.Series {
	out := make([]core.Series, len(series))
	for i, s := range series {
		out[i] = core.Series{
			Category: s.Category,
			Points:   append([]core.TimeSeriesPoint(nil), s.Points...),
		}
	}
	return out
}
