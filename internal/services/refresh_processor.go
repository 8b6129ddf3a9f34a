package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"studiocharts/internal/log"
)

// RefreshProcessorConfig holds configuration for the refresh processor
type RefreshProcessorConfig struct {
	// Interval between reloads (default: 5m)
	Interval time.Duration

	// MaxConsecutiveFailures before the error level escalates (default: 3)
	MaxConsecutiveFailures int
}

// DefaultRefreshProcessorConfig returns sensible defaults
func DefaultRefreshProcessorConfig() RefreshProcessorConfig {
	return RefreshProcessorConfig{
		Interval:               5 * time.Minute,
		MaxConsecutiveFailures: 3,
	}
}

// RefreshProcessor reloads the dataset on a fixed interval so edits made
// directly in the source (a spreadsheet, the CSV files) show up without an
// import.
type RefreshProcessor struct {
	reloader Reloader
	config   RefreshProcessorConfig
	logger   *log.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	failures int
}

func NewRefreshProcessor(reloader Reloader, config RefreshProcessorConfig, logger *log.Logger) *RefreshProcessor {
	if logger == nil {
		logger = log.Discard()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultRefreshProcessorConfig().Interval
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = DefaultRefreshProcessorConfig().MaxConsecutiveFailures
	}
	return &RefreshProcessor{
		reloader: reloader,
		config:   config,
		logger:   logger.WithComponent(log.ComponentDataset),
	}
}

// Start begins the reload loop. Returns an error if already running.
func (p *RefreshProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("refresh processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.runLoop(ctx, p.stopCh, p.doneCh)

	p.logger.InfoContext(ctx, "Refresh processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for an in-flight reload to finish.
func (p *RefreshProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Refresh processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Refresh processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *RefreshProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RefreshProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *RefreshProcessor) refresh(ctx context.Context) {
	d, err := p.reloader.Load(ctx)
	if err != nil {
		p.mu.Lock()
		p.failures++
		failures := p.failures
		p.mu.Unlock()

		if failures >= p.config.MaxConsecutiveFailures {
			p.logger.ErrorContext(ctx, "Periodic reload keeps failing",
				log.FieldOperation, log.OpReload, "consecutive_failures", failures, log.FieldError, err)
			return
		}
		p.logger.WarnContext(ctx, "Periodic reload failed",
			log.FieldOperation, log.OpReload, "consecutive_failures", failures, log.FieldError, err)
		return
	}

	p.mu.Lock()
	p.failures = 0
	p.mu.Unlock()
	p.logger.DebugContext(ctx, "Periodic reload done", log.FieldDatasetVersion, d.Version)
}

// ConsecutiveFailures is the number of reloads failed since the last success.
func (p *RefreshProcessor) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}
