package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry manages the lifecycle of all registered collectors.
// It is thread-safe: Register, StartAll, WaitForSync, and StopAll
// can be called from different goroutines.
type Registry struct {
	mu         sync.Mutex
	collectors []Collector
	started    bool
}

// NewRegistry creates a new, empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a collector to the registry.
func (r *Registry) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors = append(r.collectors, c)
}

// PartialStartError is returned when some (but not all) collectors
// fail to start. Callers use errors.As to distinguish partial from
// total failure; a partial start degrades the affected sources only.
type PartialStartError struct {
	Failed []string
	Total  int
}

func (e *PartialStartError) Error() string {
	return fmt.Sprintf("%d of %d collectors failed to start: %v", len(e.Failed), e.Total, e.Failed)
}

// StartAll starts all registered collectors concurrently. It returns
// a PartialStartError if some fail, or a plain error if all fail.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	collectors := r.snapshotLocked()
	r.started = true
	r.mu.Unlock()

	if len(collectors) == 0 {
		return nil
	}

	var (
		wg     sync.WaitGroup
		failMu sync.Mutex
		failed []string
	)

	for _, c := range collectors {
		wg.Add(1)
		go func(c Collector) {
			defer wg.Done()
			if err := c.Start(ctx); err != nil {
				slog.Error("collector failed to start", "collector", c.Name(), "error", err)
				failMu.Lock()
				failed = append(failed, c.Name())
				failMu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	switch {
	case len(failed) == len(collectors):
		return fmt.Errorf("all %d collectors failed to start", len(failed))
	case len(failed) > 0:
		return &PartialStartError{Failed: failed, Total: len(collectors)}
	}
	return nil
}

// WaitForSync waits until every collector has completed its first poll
// or the context expires.
func (r *Registry) WaitForSync(ctx context.Context) error {
	r.mu.Lock()
	collectors := r.snapshotLocked()
	r.mu.Unlock()

	if len(collectors) == 0 {
		return nil
	}

	errCh := make(chan error, len(collectors))
	var wg sync.WaitGroup
	for _, c := range collectors {
		wg.Add(1)
		go func(c Collector) {
			defer wg.Done()
			if err := c.WaitForSync(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", c.Name(), err)
			}
		}(c)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return fmt.Errorf("collector sync failed: %w", err)
		}
	}
	return nil
}

// StopAll stops all registered collectors. Safe to call multiple times.
func (r *Registry) StopAll() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	collectors := r.snapshotLocked()
	r.started = false
	r.mu.Unlock()

	for _, c := range collectors {
		c.Stop()
	}
}

// Collectors returns the registered collectors.
func (r *Registry) Collectors() []Collector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []Collector {
	out := make([]Collector, len(r.collectors))
	copy(out, r.collectors)
	return out
}
