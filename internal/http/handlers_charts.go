package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"studiocharts/internal/cache"
	"studiocharts/internal/chart"
	"studiocharts/internal/core"
	"studiocharts/internal/dataset"
	"studiocharts/internal/export"
	"studiocharts/internal/log"
)

type studioInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type studiosResponse struct {
	Version uint64       `json:"version"`
	Studios []studioInfo `json:"studios"`
	MinYear *int         `json:"min_year,omitempty"`
	MaxYear *int         `json:"max_year,omitempty"`
}

// handleStudios lists the dropdown entries with their trace colours.
func (s *Server) handleStudios(w http.ResponseWriter, r *http.Request) {
	d, ok := s.current(w, r)
	if !ok {
		return
	}

	colors := chart.StudioColors(d.Studios)
	resp := studiosResponse{Version: d.Version, Studios: make([]studioInfo, len(d.Studios))}
	for i, name := range d.Studios {
		resp.Studios[i] = studioInfo{Name: name, Color: chart.CSS(colors[name])}
	}
	if lo, hi, ok := d.YearRange(); ok {
		resp.MinYear, resp.MaxYear = &lo, &hi
	}

	_ = NewResponse().Version(d.Version).JSON(resp).Write(w)
}

func (s *Server) handleTopBrands(w http.ResponseWriter, r *http.Request) {
	s.serveRanking(w, r, "top-brands", (*dataset.Dataset).TopBrands)
}

func (s *Server) handleTopStudios(w http.ResponseWriter, r *http.Request) {
	s.serveRanking(w, r, "top-studios", (*dataset.Dataset).TopStudios)
}

// serveRanking answers with the bar figure of rank(d, n).
func (s *Server) serveRanking(w http.ResponseWriter, r *http.Request, name string, rank func(*dataset.Dataset, int) core.RankedTopN) {
	d, ok := s.current(w, r)
	if !ok {
		return
	}
	n, err := ParseTopN(r.URL.Query(), s.opts.TopN, s.opts.MaxTopN)
	if err != nil {
		_ = BadRequestError(err.Error()).Write(w)
		return
	}

	s.serveFigure(w, r, d, cache.Key(d.Version, "json", name, strconv.Itoa(n)), func() chart.Figure {
		return chart.BarFigure(rank(d, n))
	})
}

func (s *Server) handleBubble(w http.ResponseWriter, r *http.Request) {
	d, ok := s.current(w, r)
	if !ok {
		return
	}
	n, err := ParseTopN(r.URL.Query(), s.opts.TopN, s.opts.MaxTopN)
	if err != nil {
		_ = BadRequestError(err.Error()).Write(w)
		return
	}

	s.serveFigure(w, r, d, cache.Key(d.Version, "json", "bubble", strconv.Itoa(n)), func() chart.Figure {
		return chart.BubbleFigure(d.TopBrandRows(n))
	})
}

// handleScatter serves the static release timeline for one studio or all.
func (s *Server) handleScatter(w http.ResponseWriter, r *http.Request) {
	d, ok := s.current(w, r)
	if !ok {
		return
	}
	studio, series, ok := s.seriesFor(w, r, d)
	if !ok {
		return
	}

	s.serveFigure(w, r, d, cache.Key(d.Version, "json", "scatter", studio), func() chart.Figure {
		lo, hi := yearRange(d)
		return chart.ScatterFigure(series, chart.StudioColors(d.Studios), lo, hi)
	})
}

func (s *Server) serveFigure(w http.ResponseWriter, r *http.Request, d *dataset.Dataset, key string, build func() chart.Figure) {
	body, err := s.renders.GetOrLoad(key, func() ([]byte, error) {
		return json.Marshal(build())
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Figure encoding failed",
			log.FieldOperation, log.OpRender, log.FieldChart, key, log.FieldError, err)
		_ = InternalServerError("failed to build figure").Write(w)
		return
	}
	_ = NewResponse().Version(d.Version).RawJSON(body).Write(w)
}

func (s *Server) handleTopBrandsPNG(w http.ResponseWriter, r *http.Request) {
	d, ok := s.current(w, r)
	if !ok {
		return
	}
	n, err := ParseTopN(r.URL.Query(), s.opts.TopN, s.opts.MaxTopN)
	if err != nil {
		_ = BadRequestError(err.Error()).Write(w)
		return
	}

	title := fmt.Sprintf("Top %d productoras por ganancias totales", n)
	s.serveRender(w, r, d, contentTypePNG, "", cache.Key(d.Version, "png", "top-brands", strconv.Itoa(n)), func(buf *bytes.Buffer) error {
		return chart.BarPNG(buf, title, d.TopBrands(n))
	})
}

func (s *Server) handleBubblesPNG(w http.ResponseWriter, r *http.Request) {
	d, ok := s.current(w, r)
	if !ok {
		return
	}
	n, err := ParseTopN(r.URL.Query(), s.opts.TopN, s.opts.MaxTopN)
	if err != nil {
		_ = BadRequestError(err.Error()).Write(w)
		return
	}

	s.serveRender(w, r, d, contentTypePNG, "", cache.Key(d.Version, "png", "bubbles", strconv.Itoa(n)), func(buf *bytes.Buffer) error {
		return chart.BubblePNG(buf, d.TopBrandRows(n))
	})
}

func (s *Server) handleReleasesPNG(w http.ResponseWriter, r *http.Request) {
	d, ok := s.current(w, r)
	if !ok {
		return
	}
	studio, series, ok := s.seriesFor(w, r, d)
	if !ok {
		return
	}

	s.serveRender(w, r, d, contentTypePNG, "", cache.Key(d.Version, "png", "releases", studio), func(buf *bytes.Buffer) error {
		lo, hi := yearRange(d)
		return chart.ScatterPNG(buf, series, chart.StudioColors(d.Studios), lo, hi)
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	d, ok := s.current(w, r)
	if !ok {
		return
	}
	n, err := ParseTopN(r.URL.Query(), s.opts.TopN, s.opts.MaxTopN)
	if err != nil {
		_ = BadRequestError(err.Error()).Write(w)
		return
	}

	s.serveRender(w, r, d, contentTypeXLSX, "top.xlsx", cache.Key(d.Version, "xlsx", "top", strconv.Itoa(n)), func(buf *bytes.Buffer) error {
		return export.Write(buf, d, n)
	})
}

// serveRender renders into memory through the cache so a failed render never
// leaves a half written body.
func (s *Server) serveRender(w http.ResponseWriter, r *http.Request, d *dataset.Dataset, contentType, filename, key string, render func(*bytes.Buffer) error) {
	body, err := s.renders.GetOrLoad(key, func() ([]byte, error) {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if errors.Is(err, chart.ErrNoData) {
		_ = NotFoundError("nothing to render").Write(w)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Render failed",
			log.FieldOperation, log.OpRender, log.FieldChart, key, log.FieldError, err)
		_ = InternalServerError("failed to render").Write(w)
		return
	}

	resp := NewResponse().Version(d.Version).Binary(contentType, body)
	if filename != "" {
		resp.Attachment(filename)
	}
	_ = resp.Write(w)
}

// seriesFor resolves the studio filter or writes the error response.
func (s *Server) seriesFor(w http.ResponseWriter, r *http.Request, d *dataset.Dataset) (string, []core.Series, bool) {
	studio, err := ParseStudio(r.URL.Query())
	if err != nil {
		_ = BadRequestError(err.Error()).Write(w)
		return "", nil, false
	}
	series, err := d.SeriesFor(studio)
	if errors.Is(err, dataset.ErrUnknownStudio) {
		_ = NotFoundError(err.Error()).Write(w)
		return "", nil, false
	}
	if err != nil {
		_ = InternalServerError("failed to select studio").Write(w)
		return "", nil, false
	}
	return studio, series, true
}

// yearRange returns lo > hi when there are no usable titles, leaving the
// axis range automatic.
func yearRange(d *dataset.Dataset) (int, int) {
	lo, hi, ok := d.YearRange()
	if !ok {
		return 1, 0
	}
	return lo, hi
}
