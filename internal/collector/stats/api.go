package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// StatsAPI abstracts one-shot container stats reads for testability.
type StatsAPI interface {
	ReadStats(ctx context.Context, containerID string) (container.StatsResponse, error)
	Close() error
}

type dockerStatsClient struct {
	cli *client.Client
}

// NewDockerStatsClient creates a StatsAPI over the local Docker
// daemon. host overrides DOCKER_HOST when non-empty.
func NewDockerStatsClient(host string) (StatsAPI, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &dockerStatsClient{cli: cli}, nil
}

func (d *dockerStatsClient) Close() error { return d.cli.Close() }

func (d *dockerStatsClient) ReadStats(ctx context.Context, containerID string) (container.StatsResponse, error) {
	resp, err := d.cli.ContainerStatsOneShot(ctx, containerID)
	if err != nil {
		return container.StatsResponse{}, fmt.Errorf("stats read: %w", err)
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return container.StatsResponse{}, fmt.Errorf("stats decode: %w", err)
	}
	return stats, nil
}

// CPUPercent computes the CPU utilization percentage from a stats
// sample the way docker stats does: usage delta over system delta,
// scaled by the online CPU count. One-shot reads have no precpu
// sample on some daemon versions; those report zero.
func CPUPercent(s container.StatsResponse) float64 {
	cpuDelta := float64(s.CPUStats.CPUUsage.TotalUsage) - float64(s.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(s.CPUStats.SystemUsage) - float64(s.PreCPUStats.SystemUsage)
	if cpuDelta <= 0 || sysDelta <= 0 {
		return 0
	}
	online := float64(s.CPUStats.OnlineCPUs)
	if online == 0 {
		online = float64(len(s.CPUStats.CPUUsage.PercpuUsage))
	}
	if online == 0 {
		online = 1
	}
	return cpuDelta / sysDelta * online * 100.0
}

// MemoryUsage returns the working-set memory usage: total usage minus
// the reclaimable page cache, matching what docker stats displays.
func MemoryUsage(s container.StatsResponse) uint64 {
	usage := s.MemoryStats.Usage
	// cgroup v2 reports the cache as inactive_file, v1 as total_inactive_file.
	if v, ok := s.MemoryStats.Stats["inactive_file"]; ok && v < usage {
		return usage - v
	}
	if v, ok := s.MemoryStats.Stats["total_inactive_file"]; ok && v < usage {
		return usage - v
	}
	return usage
}

// NetworkTotals sums rx and tx bytes across all interfaces.
func NetworkTotals(s container.StatsResponse) (rx, tx uint64) {
	for _, nw := range s.Networks {
		rx += nw.RxBytes
		tx += nw.TxBytes
	}
	return rx, tx
}

// BlockIOTotals sums read and write bytes across all block devices.
func BlockIOTotals(s container.StatsResponse) (read, write uint64) {
	for _, entry := range s.BlkioStats.IoServiceBytesRecursive {
		switch strings.ToLower(entry.Op) {
		case "read":
			read += entry.Value
		case "write":
			write += entry.Value
		}
	}
	return read, write
}
