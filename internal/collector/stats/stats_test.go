package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agenterrors "github.com/jenastar/aura-agent/internal/errors"
	"github.com/jenastar/aura-agent/internal/observability"
	"github.com/jenastar/aura-agent/pkg/model"
)

func sampleStats() container.StatsResponse {
	var s container.StatsResponse
	s.CPUStats.CPUUsage.TotalUsage = 400_000_000
	s.CPUStats.SystemUsage = 10_000_000_000
	s.CPUStats.OnlineCPUs = 4
	s.PreCPUStats.CPUUsage.TotalUsage = 200_000_000
	s.PreCPUStats.SystemUsage = 9_000_000_000
	s.MemoryStats.Usage = 1 << 30
	s.MemoryStats.Limit = 4 << 30
	s.MemoryStats.Stats = map[string]uint64{"inactive_file": 1 << 28}
	s.Networks = map[string]container.NetworkStats{
		"eth0": {RxBytes: 1000, TxBytes: 2000},
		"eth1": {RxBytes: 10, TxBytes: 20},
	}
	s.BlkioStats.IoServiceBytesRecursive = []container.BlkioStatEntry{
		{Op: "Read", Value: 4096},
		{Op: "Write", Value: 8192},
		{Op: "read", Value: 100},
	}
	s.PidsStats.Current = 12
	return s
}

func TestCPUPercent(t *testing.T) {
	s := sampleStats()
	// delta 200M over 1000M of system time across 4 cpus = 80%.
	assert.InDelta(t, 80.0, CPUPercent(s), 0.001)
}

func TestCPUPercent_NoPrecpuSample(t *testing.T) {
	var s container.StatsResponse
	s.CPUStats.CPUUsage.TotalUsage = 100
	s.CPUStats.SystemUsage = 0
	assert.Zero(t, CPUPercent(s))
}

func TestCPUPercent_FallsBackToPercpuCount(t *testing.T) {
	s := sampleStats()
	s.CPUStats.OnlineCPUs = 0
	s.CPUStats.CPUUsage.PercpuUsage = make([]uint64, 2)
	assert.InDelta(t, 40.0, CPUPercent(s), 0.001)
}

func TestMemoryUsage_SubtractsPageCache(t *testing.T) {
	s := sampleStats()
	assert.Equal(t, uint64(1<<30-1<<28), MemoryUsage(s))

	// cgroup v1 key.
	s.MemoryStats.Stats = map[string]uint64{"total_inactive_file": 1 << 28}
	assert.Equal(t, uint64(1<<30-1<<28), MemoryUsage(s))

	// No cache accounting at all.
	s.MemoryStats.Stats = nil
	assert.Equal(t, uint64(1<<30), MemoryUsage(s))
}

func TestNetworkTotals(t *testing.T) {
	rx, tx := NetworkTotals(sampleStats())
	assert.Equal(t, uint64(1010), rx)
	assert.Equal(t, uint64(2020), tx)
}

func TestBlockIOTotals(t *testing.T) {
	read, write := BlockIOTotals(sampleStats())
	assert.Equal(t, uint64(4196), read)
	assert.Equal(t, uint64(8192), write)
}

// mockStatsAPI implements StatsAPI for testing.
type mockStatsAPI struct {
	responses map[string]container.StatsResponse
	errs      map[string]error
}

func (m *mockStatsAPI) ReadStats(_ context.Context, id string) (container.StatsResponse, error) {
	if err, ok := m.errs[id]; ok {
		return container.StatsResponse{}, err
	}
	return m.responses[id], nil
}

func (m *mockStatsAPI) Close() error { return nil }

type staticLister []model.ContainerInfo

func (l staticLister) GetContainers() []model.ContainerInfo { return l }

func TestCollector_Poll(t *testing.T) {
	mock := &mockStatsAPI{
		responses: map[string]container.StatsResponse{"full-id-running": sampleStats()},
		errs:      map[string]error{"full-id-broken": errors.New("conn reset")},
	}
	lister := staticLister{
		{ID: "full-id-running", ShortID: "full-id-runn", Name: "ollama", Project: "ml", Running: true, Status: "running"},
		{ID: "full-id-broken", ShortID: "full-id-brok", Name: "flaky", Running: true, Status: "running"},
		{ID: "full-id-stopped", ShortID: "full-id-stop", Name: "done", Running: false, Status: "exited", RestartCount: 3},
	}
	errs := agenterrors.NewCollector(agenterrors.RealClock{})
	c := NewCollector(mock, lister, time.Hour, time.Second, errs, observability.NewMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Start(ctx))
	defer c.Stop()
	require.NoError(t, c.WaitForSync(ctx))

	stats := c.GetStats()
	require.Len(t, stats, 3)

	byName := make(map[string]model.ContainerStats)
	for _, s := range stats {
		byName[s.ContainerName] = s
	}

	running := byName["ollama"]
	assert.InDelta(t, 80.0, running.CPUPercent, 0.001)
	assert.Equal(t, uint64(4<<30), running.MemoryLimitBytes)
	assert.Equal(t, uint64(12), running.PIDs)
	assert.Equal(t, "ml", running.Project)

	// Failed read keeps the inventory entry with zeroed numbers.
	flaky := byName["flaky"]
	assert.Zero(t, flaky.CPUPercent)
	assert.True(t, flaky.Running)
	assert.Contains(t, errs.ActiveCodes(), string(agenterrors.ErrStatsFailed))

	// Stopped containers are listed but never polled.
	stopped := byName["done"]
	assert.Equal(t, "exited", stopped.Status)
	assert.Equal(t, 3, stopped.RestartCount)
	assert.Zero(t, stopped.MemoryUsageBytes)
}

func TestCollector_Name(t *testing.T) {
	c := NewCollector(&mockStatsAPI{}, staticLister{}, time.Minute, time.Second,
		agenterrors.NewCollector(agenterrors.RealClock{}), observability.NewMetrics())
	assert.Equal(t, "stats", c.Name())
}
