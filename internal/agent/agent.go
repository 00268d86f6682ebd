// Package agent orchestrates the collector lifecycle and the
// attribution cycle loop.
package agent

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/docker/go-units"

	"github.com/jenastar/aura-agent/internal/collector"
	"github.com/jenastar/aura-agent/internal/config"
	"github.com/jenastar/aura-agent/internal/errors"
	"github.com/jenastar/aura-agent/internal/observability"
	"github.com/jenastar/aura-agent/internal/snapshot"
	"github.com/jenastar/aura-agent/pkg/model"
)

// Agent wires the collectors to the cycle builder and runs the
// collection loop. The latest snapshot is swapped in atomically so
// scrapes never see a half-built cycle.
type Agent struct {
	config         *config.Config
	registry       *collector.Registry
	builder        *snapshot.Builder
	errorCollector *errors.Collector
	metrics        *observability.Metrics

	latestSnapshot atomic.Pointer[model.CycleSnapshot]
	ready          atomic.Bool
	cycle          atomic.Uint64
	startedAt      time.Time
}

// NewAgent creates an Agent with all required dependencies.
func NewAgent(
	cfg *config.Config,
	registry *collector.Registry,
	builder *snapshot.Builder,
	errCollector *errors.Collector,
	metrics *observability.Metrics,
) *Agent {
	return &Agent{
		config:         cfg,
		registry:       registry,
		builder:        builder,
		errorCollector: errCollector,
		metrics:        metrics,
		startedAt:      time.Now(),
	}
}

// IsReady reports whether the agent has completed initial sync and is
// actively building cycles. Implements health.ReadinessChecker.
func (a *Agent) IsReady() bool {
	return a.ready.Load()
}

// LatestSnapshot returns the most recent cycle snapshot, or nil before
// the first cycle completes. Implements the exporter and health
// snapshot provider interfaces.
func (a *Agent) LatestSnapshot() *model.CycleSnapshot {
	return a.latestSnapshot.Load()
}

// Run executes the agent lifecycle: start collectors, wait for their
// first poll, then build cycles on the interval until the context is
// canceled.
func (a *Agent) Run(ctx context.Context) error {
	a.metrics.SetState("starting")

	if err := a.registry.StartAll(ctx); err != nil {
		var partial *collector.PartialStartError
		if stderrors.As(err, &partial) {
			slog.Warn("some collectors failed to start, continuing with partial data",
				"failed", partial.Failed, "total", partial.Total)
		} else {
			a.metrics.SetState("stopped")
			return fmt.Errorf("failed to start collectors: %w", err)
		}
	}
	defer a.registry.StopAll()
	defer a.metrics.SetState("stopped")

	syncCtx, syncCancel := context.WithTimeout(ctx, a.config.SyncTimeout)
	defer syncCancel()
	syncStart := time.Now()
	if err := a.registry.WaitForSync(syncCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("source sync incomplete, continuing with partial data",
			"error", err,
			"timeout", a.config.SyncTimeout,
			"elapsed", time.Since(syncStart).Round(time.Millisecond),
		)
	} else {
		slog.Info("sources synced",
			"elapsed", time.Since(syncStart).Round(time.Millisecond))
	}

	a.ready.Store(true)
	a.metrics.SetState("running")
	slog.Info("agent is ready", "interval", a.config.CollectionInterval)

	ticker := time.NewTicker(a.config.CollectionInterval)
	defer ticker.Stop()

	a.doCycle()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.doCycle()
		}
	}
}

func (a *Agent) doCycle() {
	cycle := a.cycle.Add(1)
	start := time.Now()

	snap := a.builder.Build(cycle)
	a.latestSnapshot.Store(snap)

	elapsed := time.Since(start)
	a.metrics.CycleDuration.Observe(elapsed.Seconds())

	degraded := snap.Health.GPUDegraded || snap.Health.RegistryDegraded
	if degraded {
		a.metrics.CyclesTotal.WithLabelValues("degraded").Inc()
		a.metrics.SetState("degraded")
	} else {
		a.metrics.CyclesTotal.WithLabelValues("ok").Inc()
		a.metrics.SetState("running")
	}

	slog.Info("cycle complete",
		"cycle", cycle,
		"duration", elapsed.Round(time.Millisecond),
		"devices", snap.Summary.DeviceCount,
		"containers", snap.Summary.ContainerCount,
		"known", units.BytesSize(float64(snap.Summary.TotalKnownBytes)),
		"unknown", units.BytesSize(float64(snap.Summary.TotalUnknownBytes)),
		"unattributed", units.BytesSize(float64(snap.Summary.UnattributedBytes)),
		"degraded", degraded,
	)
}
