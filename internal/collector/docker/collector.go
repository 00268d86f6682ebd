package docker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	agenterrors "github.com/jenastar/aura-agent/internal/errors"
	"github.com/jenastar/aura-agent/internal/observability"
	"github.com/jenastar/aura-agent/pkg/model"
)

// Collector polls the Docker daemon on a timer. It implements the
// collector.Collector interface.
type Collector struct {
	api      ContainerAPI
	interval time.Duration
	timeout  time.Duration
	errs     *agenterrors.Collector
	metrics  *observability.Metrics
	stopCh   chan struct{}
	done     chan struct{}

	syncOnce sync.Once
	synced   chan struct{}

	mu         sync.RWMutex
	containers []model.ContainerInfo
	available  bool
}

// NewCollector creates a container inventory poller.
func NewCollector(api ContainerAPI, interval, timeout time.Duration, errs *agenterrors.Collector, metrics *observability.Metrics) *Collector {
	return &Collector{
		api:      api,
		interval: interval,
		timeout:  timeout,
		errs:     errs,
		metrics:  metrics,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		synced:   make(chan struct{}),
	}
}

// Name returns the collector name.
func (c *Collector) Name() string { return "docker" }

// Start launches the background polling goroutine.
func (c *Collector) Start(ctx context.Context) error {
	go c.run(ctx)
	return nil
}

// WaitForSync blocks until the first poll completes or the context is
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
	_ = c.api.Close()
}

// GetContainers returns a copy of the latest container inventory.
func (c *Collector) GetContainers() []model.ContainerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.ContainerInfo, len(c.containers))
	copy(out, c.containers)
	return out
}

// Available reports whether the last poll reached the daemon.
func (c *Collector) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
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
	pollCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	containers, err := c.api.ListContainers(pollCtx)
	c.metrics.SourcePollDuration.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.SourcePollErrors.WithLabelValues(c.Name()).Inc()
		c.errs.Report(agenterrors.AgentError{
			Code:      agenterrors.ErrRegistryUnavailable,
			Component: "docker",
			Message:   err.Error(),
			Timestamp: time.Now().Unix(),
			Err:       err,
		})
		slog.Warn("docker poll failed", "error", err)

		// The inventory goes stale fast when the daemon restarts
		// containers, so an outage clears it instead of serving old
		// attributions.
		c.mu.Lock()
		c.containers = nil
		c.available = false
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.containers = containers
	c.available = true
	c.mu.Unlock()

	slog.Debug("docker poll complete", "containers", len(containers))
}
