package model

// CycleSnapshot is the complete result of one collection cycle. It is
// built once per cycle, swapped in atomically, and served read-only to
// scrapes until the next cycle replaces it.
type CycleSnapshot struct {
	CycleID      string `json:"cycle_id"`
	Cycle        uint64 `json:"cycle"`
	Timestamp    int64  `json:"timestamp"` // unix millis
	AgentVersion string `json:"agent_version"`

	Devices      []GPUDevice         `json:"devices"`
	Containers   []ContainerInfo     `json:"containers"`
	Attributions []DeviceAttribution `json:"attributions"`
	Scores       []ContainerScore    `json:"scores,omitempty"`

	Stats     []ContainerStats  `json:"stats,omitempty"`
	Inference *InferenceService `json:"inference,omitempty"`

	Summary CycleSummary `json:"summary"`
	Health  CycleHealth  `json:"health"`
}

// CycleHealth records which sources degraded during the cycle.
type CycleHealth struct {
	GPUDegraded      bool     `json:"gpu_degraded"`
	RegistryDegraded bool     `json:"registry_degraded"`
	ActiveErrors     []string `json:"active_errors,omitempty"`
}

// CycleSummary aggregates the cycle for logs and the debug endpoint.
type CycleSummary struct {
	DeviceCount         int    `json:"device_count"`
	ContainerCount      int    `json:"container_count"`
	GPUEntitledCount    int    `json:"gpu_entitled_count"`
	VisibleProcessCount int    `json:"visible_process_count"`
	TotalUsedBytes      uint64 `json:"total_used_bytes"`
	TotalKnownBytes     uint64 `json:"total_known_bytes"`
	TotalUnknownBytes   uint64 `json:"total_unknown_bytes"`
	TotalInferredBytes  uint64 `json:"total_inferred_bytes"`
	UnattributedBytes   uint64 `json:"unattributed_bytes"`
}
