// Package cache keeps rendered chart artefacts keyed by dataset version.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"studiocharts/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is a cache that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Purger is a cache that can be emptied at once.
type Purger interface {
	Purge() int
}

// Store is what the Manager tracks.
type Store interface {
	Cleaner
	Purger
}

var _ Store = (*LRUCache[[]byte])(nil)

// Key joins the dataset version and the artefact name so a reload never
// serves a stale rendering.
func Key(version uint64, parts ...string) string {
	return fmt.Sprintf("v%d:%s", version, strings.Join(parts, ":"))
}

// Manager runs periodic cleanup over registered caches and purges them all
// when the dataset changes.
type Manager struct {
	mu          sync.Mutex
	caches      map[string]Store
	logger      *log.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
	started     bool
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		caches:      make(map[string]Store),
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a named cache.
func (m *Manager) Register(name string, c Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// PurgeAll empties every registered cache.
func (m *Manager) PurgeAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, c := range m.caches {
		total += c.Purge()
	}
	if total > 0 {
		m.logger.Debug("Caches purged", "entries", total)
	}
	return total
}

// CleanExpired sweeps every registered cache once.
func (m *Manager) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for name, c := range m.caches {
		if n := c.CleanExpired(); n > 0 {
			m.logger.Debug("Expired entries removed", "cache", name, "entries", n)
			total += n
		}
	}
	return total
}

// StartCleanup sweeps expired entries every interval until Stop.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanExpired()
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup goroutine started by StartCleanup.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		if started {
			<-m.cleanupDone
		}
	})
}
