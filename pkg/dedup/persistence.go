package dedup

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// PersistenceManager saves deduplicator snapshots periodically and once more
// on stop
type PersistenceManager struct {
	dedup    *Deduplicator
	path     string
	interval time.Duration
	logger   *slog.Logger

	stopChan chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewPersistenceManager creates manager
func NewPersistenceManager(dedup *Deduplicator, path string, interval time.Duration) *PersistenceManager {
	return &PersistenceManager{
		dedup:    dedup,
		path:     path,
		interval: interval,
		logger:   dedup.logger.With("path", path),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins saving in the background until ctx is done or Stop is called
func (pm *PersistenceManager) Start(ctx context.Context) {
	if !pm.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(pm.done)

		ticker := time.NewTicker(pm.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				pm.save()
			case <-ctx.Done():
				pm.save()
				return
			case <-pm.stopChan:
				pm.save()
				return
			}
		}
	}()
}

// Stop stops saving after a final snapshot and waits for it to be written
func (pm *PersistenceManager) Stop() {
	pm.stopOnce.Do(func() {
		close(pm.stopChan)
	})
	if pm.started.Load() {
		<-pm.done
	}
}

func (pm *PersistenceManager) save() {
	start := time.Now()
	if err := pm.dedup.SaveToFile(pm.path); err != nil {
		pm.logger.Error("failed to save snapshot", "error", err)
		return
	}
	pm.logger.Debug("snapshot saved", "duration", time.Since(start))
}
