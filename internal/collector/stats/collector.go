package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	agenterrors "github.com/jenastar/aura-agent/internal/errors"
	"github.com/jenastar/aura-agent/internal/observability"
	"github.com/jenastar/aura-agent/pkg/model"
)

// ContainerLister supplies the current container inventory on each
// poll. The docker collector satisfies it.
type ContainerLister interface {
	GetContainers() []model.ContainerInfo
}

// Collector reads one-shot stats for every running container on a
// timer. It implements the collector.Collector interface.
type Collector struct {
	api      StatsAPI
	lister   ContainerLister
	interval time.Duration
	timeout  time.Duration
	errs     *agenterrors.Collector
	metrics  *observability.Metrics
	stopCh   chan struct{}
	done     chan struct{}

	syncOnce sync.Once
	synced   chan struct{}

	mu    sync.RWMutex
	stats []model.ContainerStats
}

// NewCollector creates a stats poller over the given inventory source.
func NewCollector(api StatsAPI, lister ContainerLister, interval, timeout time.Duration, errs *agenterrors.Collector, metrics *observability.Metrics) *Collector {
	return &Collector{
		api:      api,
		lister:   lister,
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
func (c *Collector) Name() string { return "stats" }

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

// GetStats returns a copy of the latest stats sample.
func (c *Collector) GetStats() []model.ContainerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.ContainerStats, len(c.stats))
	copy(out, c.stats)
	return out
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
	containers := c.lister.GetContainers()

	out := make([]model.ContainerStats, 0, len(containers))
	var failed int
	for _, ct := range containers {
		entry := model.ContainerStats{
			ContainerID:   ct.ShortID,
			ContainerName: ct.Name,
			Project:       ct.Project,
			RestartCount:  ct.RestartCount,
			Status:        ct.Status,
			Running:       ct.Running,
		}
		if !ct.Running {
			// Stopped containers get an inventory entry with no
			// resource numbers.
			out = append(out, entry)
			continue
		}

		readCtx, cancel := context.WithTimeout(ctx, c.timeout)
		raw, err := c.api.ReadStats(readCtx, ct.ID)
		cancel()
		if err != nil {
			failed++
			slog.Debug("stats read failed", "container", ct.ShortID, "error", err)
			out = append(out, entry)
			continue
		}

		entry.CPUPercent = CPUPercent(raw)
		entry.MemoryUsageBytes = MemoryUsage(raw)
		entry.MemoryLimitBytes = raw.MemoryStats.Limit
		entry.NetworkRxBytes, entry.NetworkTxBytes = NetworkTotals(raw)
		entry.BlockReadBytes, entry.BlockWriteBytes = BlockIOTotals(raw)
		entry.PIDs = raw.PidsStats.Current
		out = append(out, entry)
	}

	c.metrics.SourcePollDuration.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())
	if failed > 0 {
		c.metrics.SourcePollErrors.WithLabelValues(c.Name()).Inc()
		c.errs.Report(agenterrors.AgentError{
			Code:      agenterrors.ErrStatsFailed,
			Component: "stats",
			Message:   "one or more container stats reads failed",
			Timestamp: time.Now().Unix(),
		})
	}

	c.mu.Lock()
	c.stats = out
	c.mu.Unlock()

	slog.Debug("stats poll complete", "containers", len(out), "failed", failed)
}
