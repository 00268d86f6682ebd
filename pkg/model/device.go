package model

// GPUDevice represents one NVIDIA device as reported by the driver,
// including the compute processes visible in its process listing.
type GPUDevice struct {
	Index int    `json:"index"`
	UUID  string `json:"uuid"`
	Name  string `json:"name,omitempty"`

	MemoryTotalBytes uint64 `json:"memory_total_bytes"`
	MemoryUsedBytes  uint64 `json:"memory_used_bytes"`
	MemoryFreeBytes  uint64 `json:"memory_free_bytes"`

	UtilizationGPU    uint32 `json:"utilization_gpu"`
	UtilizationMemory uint32 `json:"utilization_memory"`

	Processes []GPUProcess `json:"processes"`
}

// GPUProcess is a compute process visible in the driver's process
// listing for a device. Entries the driver reports as "not supported"
// are filtered out before they reach this struct.
type GPUProcess struct {
	PID             uint32 `json:"pid"`
	MemoryUsedBytes uint64 `json:"memory_used_bytes"`
}
