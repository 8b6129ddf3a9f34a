package http

import (
	"errors"
	"net/http"

	"studiocharts/internal/amqp"
	"studiocharts/internal/animate"
	"studiocharts/internal/chart"
	"studiocharts/internal/core"
	"studiocharts/internal/log"
)

// endData closes a stream. Reason is set when the run did not complete.
type endData struct {
	Completed bool   `json:"completed"`
	Revealed  int    `json:"revealed"`
	Reason    string `json:"reason,omitempty"`
}

// handleAnimation replays the release timeline of the selected studio as a
// server-sent event stream. Each connection gets its own animator; the
// stream ends when the run completes, the client goes away or a reload
// cancels it.
func (s *Server) handleAnimation(w http.ResponseWriter, r *http.Request) {
	d, ok := s.current(w, r)
	if !ok {
		return
	}
	studio, series, ok := s.seriesFor(w, r, d)
	if !ok {
		return
	}
	ctx := r.Context()

	lo, hi := yearRange(d)
	sink, err := chart.NewSSESink(w, chart.StudioColors(d.Studios), chart.ScatterLayout(lo, hi))
	if errors.Is(err, chart.ErrStreamingUnsupported) {
		_ = InternalServerError("streaming not supported").Write(w)
		return
	}

	a := animate.New(sink, s.opts.Animation, s.logger)
	release, err := s.runs.add(a)
	if err != nil {
		s.logger.WarnContext(ctx, "Animation stream refused", log.FieldStudio, studio, log.FieldError, err)
		_ = sink.Send(chart.StreamEvent{Type: chart.EventError, Data: map[string]string{"error": err.Error()}})
		return
	}
	defer release()

	run, err := a.Start(ctx, series)
	if err != nil {
		s.logger.ErrorContext(ctx, "Animation start failed", log.FieldStudio, studio, log.FieldError, err)
		_ = sink.Send(chart.StreamEvent{Type: chart.EventError, Data: map[string]string{"error": err.Error()}})
		return
	}
	s.logger.InfoContext(ctx, "Animation stream opened",
		log.FieldRunID, run.ID,
		log.FieldStudio, studio,
		log.FieldDatasetVersion, d.Version)

	<-run.Done()

	if ctx.Err() != nil {
		return
	}
	end := endData{Completed: run.Completed(), Revealed: run.Revealed()}
	switch {
	case errors.Is(run.Err(), animate.ErrCancelled):
		end.Reason = "reload"
	case run.Err() != nil:
		end.Reason = "error"
	}
	_ = sink.Send(chart.StreamEvent{Type: chart.EventEnd, RunID: run.ID, Data: end})
}

type reloadResponse struct {
	Version uint64 `json:"version"`
	Studios int    `json:"studios"`
	Dropped int    `json:"dropped_rows"`
}

// handleReload re-reads the data backend and tells other instances to do
// the same.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	d, err := s.loader.Load(ctx)
	if errors.Is(err, core.ErrMissingColumn) {
		_ = UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	if err != nil {
		_ = ErrorResponse(http.StatusBadGateway, "failed to read the data backend").Write(w)
		return
	}

	if s.opts.Publisher != nil {
		msg := amqp.NewReloadMessage(0, s.opts.Source, "manual")
		msg.Origin = s.opts.InstanceID
		if err := s.opts.Publisher.PublishReload(ctx, msg); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish reload message",
				log.FieldOperation, log.OpReload, log.FieldError, err)
		}
	}

	_ = NewResponse().
		Version(d.Version).
		NoStore().
		JSON(reloadResponse{Version: d.Version, Studios: len(d.Studios), Dropped: d.Dropped}).
		Write(w)
}
