package inference

import (
	"context"
	"log/slog"
	"sync"
	"time"

	agenterrors "github.com/jenastar/aura-agent/internal/errors"
	"github.com/jenastar/aura-agent/internal/observability"
	"github.com/jenastar/aura-agent/pkg/model"
)

// Collector probes the inference server on a timer. It implements the
// collector.Collector interface.
type Collector struct {
	api      ProbeAPI
	interval time.Duration
	errs     *agenterrors.Collector
	metrics  *observability.Metrics
	stopCh   chan struct{}
	done     chan struct{}

	syncOnce sync.Once
	synced   chan struct{}

	mu  sync.RWMutex
	svc model.InferenceService
}

// NewCollector creates an inference service prober.
func NewCollector(api ProbeAPI, interval time.Duration, errs *agenterrors.Collector, metrics *observability.Metrics) *Collector {
	return &Collector{
		api:      api,
		interval: interval,
		errs:     errs,
		metrics:  metrics,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		synced:   make(chan struct{}),
	}
}

// Name returns the collector name.
func (c *Collector) Name() string { return "inference" }

// Start launches the background polling goroutine.
func (c *Collector) Start(ctx context.Context) error {
	go c.run(ctx)
	return nil
}

// WaitForSync blocks until the first probe completes or the context is
// canceled.
func (c *Collector) WaitForSync(ctx context.Context) error {
	select {
	case <-c.synced:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals the collector to stop and waits for the goroutine to exit.
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.done
}

// GetService returns the latest probe result.
func (c *Collector) GetService() model.InferenceService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.svc
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)

	c.poll(ctx)
	c.syncOnce.Do(func() { close(c.synced) })

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.poll(ctx)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) poll(ctx context.Context) {
	start := time.Now()
	svc, err := c.api.Probe(ctx)
	c.metrics.SourcePollDuration.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.SourcePollErrors.WithLabelValues(c.Name()).Inc()
		c.errs.Report(agenterrors.AgentError{
			Code:      agenterrors.ErrInferenceAPIFailed,
			Component: "inference",
			Message:   err.Error(),
			Timestamp: time.Now().Unix(),
			Err:       err,
		})
		slog.Debug("inference probe failed", "error", err)
	}

	c.mu.Lock()
	c.svc = svc
	c.mu.Unlock()
}
