package agent

import (
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/docker/go-units"
)

// MemStatsProvider abstracts runtime.MemStats reading for testability.
type MemStatsProvider interface {
	ReadMemStats(m *runtime.MemStats)
}

type runtimeMemStatsProvider struct{}

func (runtimeMemStatsProvider) ReadMemStats(m *runtime.MemStats) {
	runtime.ReadMemStats(m)
}

// MemoryPressureMonitor polls runtime.MemStats at a regular interval
// and invokes a callback when memory usage exceeds a configurable
// threshold relative to GOMEMLIMIT. The profile store is the agent's
// only structure that grows with the container population, so the
// pressure log reports its entry count alongside the runtime numbers.
type MemoryPressureMonitor struct {
	threshold    float64
	callback     func()
	interval     time.Duration
	profileCount func() int
	provider     MemStatsProvider
	stopOnce     sync.Once
	stopCh       chan struct{}
}

// NewMemoryPressureMonitor creates a monitor that calls callback when
// memory usage exceeds threshold * GOMEMLIMIT. profileCount, when
// non-nil, is read at pressure time for the log line. If provider is
// nil, the real runtime.ReadMemStats is used.
func NewMemoryPressureMonitor(threshold float64, callback func(), interval time.Duration, profileCount func() int, provider MemStatsProvider) *MemoryPressureMonitor {
	if provider == nil {
		provider = runtimeMemStatsProvider{}
	}
	return &MemoryPressureMonitor{
		threshold:    threshold,
		callback:     callback,
		interval:     interval,
		profileCount: profileCount,
		provider:     provider,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the background polling goroutine.
func (m *MemoryPressureMonitor) Start() {
	go m.run()
}

func (m *MemoryPressureMonitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if usage, limit, exceeded := m.check(); exceeded {
				attrs := []any{
					"usage", units.BytesSize(float64(usage)),
					"limit", units.BytesSize(float64(limit)),
				}
				if m.profileCount != nil {
					attrs = append(attrs, "profiles", m.profileCount())
				}
				slog.Warn("memory pressure detected, triggering callback", attrs...)
				m.callback()
			}
		}
	}
}

// check reports current usage against GOMEMLIMIT and whether the
// threshold is exceeded.
func (m *MemoryPressureMonitor) check() (usage uint64, limit int64, exceeded bool) {
	limit = debug.SetMemoryLimit(-1) // read current limit without changing it
	if limit <= 0 {
		return 0, limit, false // GOMEMLIMIT not set
	}

	var stats runtime.MemStats
	m.provider.ReadMemStats(&stats)

	usage = stats.Sys - stats.HeapReleased
	return usage, limit, float64(usage)/float64(limit) > m.threshold
}

// Stop halts the background polling goroutine. Safe to call multiple times.
func (m *MemoryPressureMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}
