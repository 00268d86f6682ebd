// Package exporter publishes the latest cycle snapshot in Prometheus
// exposition format. All series are built as const metrics from the
// immutable snapshot, so a scrape observes exactly one cycle.
package exporter

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jenastar/aura-agent/pkg/model"
)

// SnapshotProvider supplies the snapshot to export. The agent
// satisfies it.
type SnapshotProvider interface {
	LatestSnapshot() *model.CycleSnapshot
}

var (
	gpuLabels       = []string{"gpu"}
	containerLabels = []string{"container_name", "container_id"}
	attribLabels    = []string{"container_name", "container_id", "gpu", "method"}
	dockerLabels    = []string{"container_name", "container_id", "project"}

	descMemTotal = prometheus.NewDesc("gpu_memory_total_bytes",
		"Total GPU memory in bytes.", gpuLabels, nil)
	descMemUsed = prometheus.NewDesc("gpu_memory_used_bytes",
		"Used GPU memory in bytes.", gpuLabels, nil)
	descMemFree = prometheus.NewDesc("gpu_memory_free_bytes",
		"Free GPU memory in bytes.", gpuLabels, nil)
	descMemKnown = prometheus.NewDesc("gpu_memory_known_bytes",
		"GPU memory accounted to processes visible in the driver listing.", gpuLabels, nil)
	descMemUnknown = prometheus.NewDesc("gpu_memory_unknown_bytes",
		"GPU memory used but not visible in the driver listing.", gpuLabels, nil)
	descMemUnattributed = prometheus.NewDesc("gpu_memory_unattributed_bytes",
		"Unknown GPU memory that no candidate container could receive.", gpuLabels, nil)
	descUtilGPU = prometheus.NewDesc("gpu_utilization_percent",
		"GPU compute utilization percentage.", gpuLabels, nil)
	descUtilMem = prometheus.NewDesc("gpu_memory_utilization_percent",
		"GPU memory bandwidth utilization percentage.", gpuLabels, nil)
	descInferenceActive = prometheus.NewDesc("gpu_inference_active",
		"Whether unknown GPU memory above the activity threshold was detected.", gpuLabels, nil)
	descInferenceConfidence = prometheus.NewDesc("gpu_inference_confidence",
		"Confidence of the unknown-memory attribution (0-1).", gpuLabels, nil)

	descContainerMem = prometheus.NewDesc("container_gpu_memory_bytes",
		"GPU memory attributed to a container.", attribLabels, nil)
	descContainerScore = prometheus.NewDesc("container_gpu_score",
		"GPU likelihood score for a container (0-1).", containerLabels, nil)
	descContainerDetected = prometheus.NewDesc("container_gpu_detected",
		"Whether the container was started with GPU access.", containerLabels, nil)

	descDockerCPU = prometheus.NewDesc("docker_container_cpu_usage_percent",
		"Container CPU usage percentage.", dockerLabels, nil)
	descDockerMemUsage = prometheus.NewDesc("docker_container_memory_usage_bytes",
		"Container memory usage in bytes.", dockerLabels, nil)
	descDockerMemLimit = prometheus.NewDesc("docker_container_memory_limit_bytes",
		"Container memory limit in bytes.", dockerLabels, nil)
	descDockerNetRx = prometheus.NewDesc("docker_container_network_rx_bytes",
		"Container network received bytes.", dockerLabels, nil)
	descDockerNetTx = prometheus.NewDesc("docker_container_network_tx_bytes",
		"Container network transmitted bytes.", dockerLabels, nil)
	descDockerBlockRead = prometheus.NewDesc("docker_container_block_read_bytes",
		"Container block device read bytes.", dockerLabels, nil)
	descDockerBlockWrite = prometheus.NewDesc("docker_container_block_write_bytes",
		"Container block device write bytes.", dockerLabels, nil)
	descDockerPIDs = prometheus.NewDesc("docker_container_pids_current",
		"Number of processes in the container.", dockerLabels, nil)
	descDockerStatus = prometheus.NewDesc("docker_container_status",
		"Container status (1 = running).", append(dockerLabels, "status"), nil)
	descDockerRestarts = prometheus.NewDesc("docker_container_restart_count",
		"Container restart count.", dockerLabels, nil)

	descOllamaUp = prometheus.NewDesc("ollama_up",
		"Ollama service availability.", []string{"host"}, nil)
	descOllamaModelCount = prometheus.NewDesc("ollama_model_count",
		"Number of models known to Ollama.", []string{"host"}, nil)
	descOllamaModelSize = prometheus.NewDesc("ollama_model_size_bytes",
		"On-disk size of an Ollama model in bytes.", []string{"host", "model"}, nil)
	descOllamaModelVRAM = prometheus.NewDesc("ollama_model_vram_bytes",
		"VRAM held by a loaded Ollama model in bytes.", []string{"host", "model"}, nil)
	descOllamaLatency = prometheus.NewDesc("ollama_api_response_time_seconds",
		"Ollama API response time.", []string{"host", "endpoint"}, nil)

	descCycleTimestamp = prometheus.NewDesc("aura_last_cycle_timestamp_seconds",
		"Unix time of the exported cycle snapshot.", nil, nil)
	descCycleNumber = prometheus.NewDesc("aura_cycle_number",
		"Monotonic cycle counter of the exported snapshot.", nil, nil)
	descInfo = prometheus.NewDesc("aura_agent_info",
		"Agent build information.", []string{"version"}, nil)
)

// Exporter implements prometheus.Collector over the latest snapshot.
type Exporter struct {
	provider SnapshotProvider
}

// New creates an Exporter over the given provider.
func New(provider SnapshotProvider) *Exporter {
	return &Exporter{provider: provider}
}

// Describe implements prometheus.Collector. The exporter is
// unchecked: the series set varies with the snapshot contents.
func (e *Exporter) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.provider.LatestSnapshot()
	if snap == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(descCycleTimestamp, prometheus.GaugeValue,
		float64(snap.Timestamp)/1000.0)
	ch <- prometheus.MustNewConstMetric(descCycleNumber, prometheus.GaugeValue,
		float64(snap.Cycle))
	ch <- prometheus.MustNewConstMetric(descInfo, prometheus.GaugeValue, 1,
		snap.AgentVersion)

	for _, dev := range snap.Devices {
		gpu := fmt.Sprint(dev.Index)
		ch <- prometheus.MustNewConstMetric(descMemTotal, prometheus.GaugeValue,
			float64(dev.MemoryTotalBytes), gpu)
		ch <- prometheus.MustNewConstMetric(descMemUsed, prometheus.GaugeValue,
			float64(dev.MemoryUsedBytes), gpu)
		ch <- prometheus.MustNewConstMetric(descMemFree, prometheus.GaugeValue,
			float64(dev.MemoryFreeBytes), gpu)
		ch <- prometheus.MustNewConstMetric(descUtilGPU, prometheus.GaugeValue,
			float64(dev.UtilizationGPU), gpu)
		ch <- prometheus.MustNewConstMetric(descUtilMem, prometheus.GaugeValue,
			float64(dev.UtilizationMemory), gpu)
	}

	for _, da := range snap.Attributions {
		gpu := fmt.Sprint(da.GPUIndex)
		ch <- prometheus.MustNewConstMetric(descMemKnown, prometheus.GaugeValue,
			float64(da.KnownBytes), gpu)
		ch <- prometheus.MustNewConstMetric(descMemUnknown, prometheus.GaugeValue,
			float64(da.UnknownBytes), gpu)
		ch <- prometheus.MustNewConstMetric(descMemUnattributed, prometheus.GaugeValue,
			float64(da.UnattributedBytes), gpu)
		ch <- prometheus.MustNewConstMetric(descInferenceActive, prometheus.GaugeValue,
			boolVal(da.InferenceActive), gpu)
		ch <- prometheus.MustNewConstMetric(descInferenceConfidence, prometheus.GaugeValue,
			da.Confidence, gpu)

		for _, r := range da.Records {
			ch <- prometheus.MustNewConstMetric(descContainerMem, prometheus.GaugeValue,
				float64(r.MemoryBytes), r.ContainerName, r.ContainerID, gpu, string(r.Method))
		}
	}

	for _, s := range snap.Scores {
		ch <- prometheus.MustNewConstMetric(descContainerScore, prometheus.GaugeValue,
			s.Score, s.ContainerName, s.ContainerID)
	}
	for _, c := range snap.Containers {
		ch <- prometheus.MustNewConstMetric(descContainerDetected, prometheus.GaugeValue,
			boolVal(c.GPUEntitled), c.Name, c.ShortID)
	}

	for _, s := range snap.Stats {
		ch <- prometheus.MustNewConstMetric(descDockerStatus, prometheus.GaugeValue,
			boolVal(s.Running), s.ContainerName, s.ContainerID, s.Project, s.Status)
		ch <- prometheus.MustNewConstMetric(descDockerRestarts, prometheus.GaugeValue,
			float64(s.RestartCount), s.ContainerName, s.ContainerID, s.Project)
		if !s.Running {
			continue
		}
		ch <- prometheus.MustNewConstMetric(descDockerCPU, prometheus.GaugeValue,
			s.CPUPercent, s.ContainerName, s.ContainerID, s.Project)
		ch <- prometheus.MustNewConstMetric(descDockerMemUsage, prometheus.GaugeValue,
			float64(s.MemoryUsageBytes), s.ContainerName, s.ContainerID, s.Project)
		ch <- prometheus.MustNewConstMetric(descDockerMemLimit, prometheus.GaugeValue,
			float64(s.MemoryLimitBytes), s.ContainerName, s.ContainerID, s.Project)
		ch <- prometheus.MustNewConstMetric(descDockerNetRx, prometheus.GaugeValue,
			float64(s.NetworkRxBytes), s.ContainerName, s.ContainerID, s.Project)
		ch <- prometheus.MustNewConstMetric(descDockerNetTx, prometheus.GaugeValue,
			float64(s.NetworkTxBytes), s.ContainerName, s.ContainerID, s.Project)
		ch <- prometheus.MustNewConstMetric(descDockerBlockRead, prometheus.GaugeValue,
			float64(s.BlockReadBytes), s.ContainerName, s.ContainerID, s.Project)
		ch <- prometheus.MustNewConstMetric(descDockerBlockWrite, prometheus.GaugeValue,
			float64(s.BlockWriteBytes), s.ContainerName, s.ContainerID, s.Project)
		ch <- prometheus.MustNewConstMetric(descDockerPIDs, prometheus.GaugeValue,
			float64(s.PIDs), s.ContainerName, s.ContainerID, s.Project)
	}

	if svc := snap.Inference; svc != nil {
		ch <- prometheus.MustNewConstMetric(descOllamaUp, prometheus.GaugeValue,
			boolVal(svc.Up), svc.Host)
		if !svc.Up {
			return
		}
		ch <- prometheus.MustNewConstMetric(descOllamaModelCount, prometheus.GaugeValue,
			float64(len(svc.Models)), svc.Host)
		ch <- prometheus.MustNewConstMetric(descOllamaLatency, prometheus.GaugeValue,
			svc.TagsLatencySeconds, svc.Host, "tags")
		for _, m := range svc.Models {
			ch <- prometheus.MustNewConstMetric(descOllamaModelSize, prometheus.GaugeValue,
				float64(m.SizeBytes), svc.Host, m.Name)
			if m.Loaded {
				ch <- prometheus.MustNewConstMetric(descOllamaModelVRAM, prometheus.GaugeValue,
					float64(m.VRAMBytes), svc.Host, m.Name)
			}
		}
	}
}

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
