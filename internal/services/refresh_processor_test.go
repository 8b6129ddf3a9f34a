package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"studiocharts/internal/dataset"
)

type countingReloader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingReloader) Load(context.Context) (*dataset.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &dataset.Dataset{Version: uint64(r.calls)}, nil
}

func (r *countingReloader) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestDefaultRefreshProcessorConfig(t *testing.T) {
	config := DefaultRefreshProcessorConfig()

	if config.Interval != 5*time.Minute {
		t.Errorf("expected Interval 5m, got %v", config.Interval)
	}
	if config.MaxConsecutiveFailures != 3 {
		t.Errorf("expected MaxConsecutiveFailures 3, got %d", config.MaxConsecutiveFailures)
	}
}

func TestNewRefreshProcessor_FillsDefaults(t *testing.T) {
	p := NewRefreshProcessor(&countingReloader{}, RefreshProcessorConfig{}, nil)

	if p.config != DefaultRefreshProcessorConfig() {
		t.Errorf("zero config should fall back to defaults, got %+v", p.config)
	}
	if p.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestRefreshProcessor_ReloadsPeriodically(t *testing.T) {
	r := &countingReloader{}
	p := NewRefreshProcessor(r, RefreshProcessorConfig{Interval: 5 * time.Millisecond}, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("expected error when starting already running processor")
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.Calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if r.Calls() < 2 {
		t.Errorf("expected at least 2 reloads, got %d", r.Calls())
	}
	if p.IsRunning() {
		t.Error("processor should be stopped")
	}
}

func TestRefreshProcessor_CountsFailures(t *testing.T) {
	r := &countingReloader{err: errors.New("sheet unavailable")}
	p := NewRefreshProcessor(r, RefreshProcessorConfig{Interval: time.Hour}, nil)

	for i := 0; i < 4; i++ {
		p.refresh(context.Background())
	}
	if got := p.ConsecutiveFailures(); got != 4 {
		t.Errorf("ConsecutiveFailures() = %d, want 4", got)
	}

	r.mu.Lock()
	r.err = nil
	r.mu.Unlock()
	p.refresh(context.Background())

	if got := p.ConsecutiveFailures(); got != 0 {
		t.Errorf("success should reset failures, got %d", got)
	}
}

func TestRefreshProcessor_StopNotRunning(t *testing.T) {
	p := NewRefreshProcessor(&countingReloader{}, DefaultRefreshProcessorConfig(), nil)

	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}
