package model

// ContainerStats carries one container's resource statistics as read
// from the Docker stats API. Values are published as-is; the agent adds
// no interpretation beyond the CPU percentage calculation.
type ContainerStats struct {
	ContainerID   string `json:"container_id"`
	ContainerName string `json:"container_name"`
	Project       string `json:"project"`

	CPUPercent       float64 `json:"cpu_percent"`
	MemoryUsageBytes uint64  `json:"memory_usage_bytes"`
	MemoryLimitBytes uint64  `json:"memory_limit_bytes"`

	NetworkRxBytes uint64 `json:"network_rx_bytes"`
	NetworkTxBytes uint64 `json:"network_tx_bytes"`

	BlockReadBytes  uint64 `json:"block_read_bytes"`
	BlockWriteBytes uint64 `json:"block_write_bytes"`

	PIDs         uint64 `json:"pids"`
	RestartCount int    `json:"restart_count"`
	Status       string `json:"status"`
	Running      bool   `json:"running"`
}
