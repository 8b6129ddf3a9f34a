package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"studiocharts/internal/amqp"
	"studiocharts/internal/core"
	"studiocharts/internal/log"
	"studiocharts/internal/services"
	"studiocharts/internal/storage"
)

// ImportHistory exposes the most recent import marker.
type ImportHistory interface {
	LatestImport(ctx context.Context) (storage.Import, error)
}

// ReloadWorker applies reload messages published by imports on any instance.
type ReloadWorker struct {
	reloader services.Reloader
	history  ImportHistory
	logger   *log.Logger

	// origin is this instance's id; its own manual reloads are skipped.
	origin string

	mu      sync.Mutex
	applied int64
}

// NewReloadWorker creates a worker. history is optional and only used by
// StartupCheck.
func NewReloadWorker(reloader services.Reloader, history ImportHistory, logger *log.Logger) *ReloadWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReloadWorker{
		reloader: reloader,
		history:  history,
		logger:   logger.WithComponent(log.ComponentAMQP),
	}
}

// SetOrigin sets the instance id stamped on reloads this process publishes.
// Call it before consuming.
func (w *ReloadWorker) SetOrigin(id string) {
	w.origin = id
}

// HandleReloadMessage reloads the dataset. Messages for an import already
// applied, and reloads this instance published itself, are acknowledged
// without reloading. A source that no longer has the required columns is
// logged and acknowledged, since redelivery cannot fix it; other failures are
// returned so the message is requeued.
func (w *ReloadWorker) HandleReloadMessage(ctx context.Context, msg *amqp.ReloadMessage) error {
	if w.origin != "" && msg.Origin == w.origin {
		w.logger.DebugContext(ctx, "Skipping own reload message",
			log.FieldSource, msg.Source,
			"reason", msg.Reason)
		return nil
	}
	if msg.Version > 0 && msg.Version <= w.Applied() {
		w.logger.DebugContext(ctx, "Reload already applied",
			log.FieldDatasetVersion, msg.Version,
			log.FieldSource, msg.Source)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing reload message",
		log.FieldDatasetVersion, msg.Version,
		log.FieldSource, msg.Source,
		"reason", msg.Reason,
		"published_at", msg.Timestamp)

	d, err := w.reloader.Load(ctx)
	if errors.Is(err, core.ErrMissingColumn) {
		w.logger.ErrorContext(ctx, "Reload rejected, keeping current dataset",
			log.FieldDatasetVersion, msg.Version, log.FieldError, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload dataset: %w", err)
	}

	w.markApplied(msg.Version)
	w.logger.InfoContext(ctx, "Dataset reloaded from message",
		log.FieldDatasetVersion, d.Version,
		"import_id", msg.Version)
	return nil
}

// StartupCheck reloads when an import newer than any applied one is on
// record, covering messages missed while the instance was down.
func (w *ReloadWorker) StartupCheck(ctx context.Context) error {
	if w.history == nil {
		return nil
	}
	imp, err := w.history.LatestImport(ctx)
	if errors.Is(err, storage.ErrNoImport) {
		w.logger.InfoContext(ctx, "No import recorded yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("latest import: %w", err)
	}
	if imp.ID <= w.Applied() {
		return nil
	}

	if _, err := w.reloader.Load(ctx); err != nil {
		return fmt.Errorf("reload dataset: %w", err)
	}
	w.markApplied(imp.ID)
	w.logger.InfoContext(ctx, "Caught up with latest import",
		"import_id", imp.ID,
		log.FieldSource, imp.Source,
		"imported_at", imp.ImportedAt)
	return nil
}

// Applied is the highest import id reloaded so far.
func (w *ReloadWorker) Applied() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.applied
}

func (w *ReloadWorker) markApplied(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id > w.applied {
		w.applied = id
	}
}
