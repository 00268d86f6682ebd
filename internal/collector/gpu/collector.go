package gpu

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	agenterrors "github.com/jenastar/aura-agent/internal/errors"
	"github.com/jenastar/aura-agent/internal/observability"
	"github.com/jenastar/aura-agent/pkg/model"
)

// Collector polls the device API on a timer. It implements the
// collector.Collector interface.
type Collector struct {
	api      DeviceAPI
	interval time.Duration
	timeout  time.Duration
	errs     *agenterrors.Collector
	metrics  *observability.Metrics
	stopCh   chan struct{}
	done     chan struct{}

	syncOnce sync.Once
	synced   chan struct{}

	mu        sync.RWMutex
	devices   []model.GPUDevice
	available bool
}

// NewCollector creates a device poller.
func NewCollector(api DeviceAPI, interval, timeout time.Duration, errs *agenterrors.Collector, metrics *observability.Metrics) *Collector {
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
func (c *Collector) Name() string { return "gpu" }

// Start launches the background polling goroutine.
func (c *Collector) Start(ctx context.Context) error {
	go c.run(ctx)
	return nil
}

// WaitForSync blocks until the first poll completes or the context is
// canceled. The first poll completing does not imply it succeeded; a
// GPU-less host syncs immediately with the source marked unavailable.
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

// GetDevices returns a copy of the latest device sample.
func (c *Collector) GetDevices() []model.GPUDevice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.GPUDevice, len(c.devices))
	copy(out, c.devices)
	return out
}

// Available reports whether the last poll reached the driver.
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
	devices, err := c.api.Snapshot(pollCtx)
	c.metrics.SourcePollDuration.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.SourcePollErrors.WithLabelValues(c.Name()).Inc()
		c.reportError(err)
	}

	var agentErr *agenterrors.AgentError
	totalFailure := err != nil && stderrors.As(err, &agentErr) && agentErr.Code == agenterrors.ErrGPUUnavailable

	c.mu.Lock()
	if totalFailure {
		// Keep the previous sample so the exporter degrades rather
		// than reporting zeroes, but flag the source down.
		c.available = false
	} else {
		c.devices = devices
		c.available = true
	}
	c.mu.Unlock()

	if !totalFailure {
		slog.Debug("gpu poll complete", "devices", len(devices))
	}
}

func (c *Collector) reportError(err error) {
	var agentErr *agenterrors.AgentError
	if !stderrors.As(err, &agentErr) {
		agentErr = &agenterrors.AgentError{
			Code:      agenterrors.ErrGPUUnavailable,
			Component: "gpu",
			Message:   err.Error(),
		}
	}
	agentErr.Timestamp = time.Now().Unix()
	agentErr.Err = err
	c.errs.Report(*agentErr)
	slog.Warn("gpu poll degraded", "code", agentErr.Code, "error", err)
}
