package model

// AttributionMethod says how a container's GPU memory figure was obtained.
type AttributionMethod string

const (
	// MethodMeasured means the bytes come from the driver's own
	// process listing, mapped to the container through /proc.
	MethodMeasured AttributionMethod = "measured"
	// MethodInferred means the bytes were distributed from the
	// device's unknown-memory pool by the attribution heuristic.
	MethodInferred AttributionMethod = "inferred"
)

// AttributionRecord assigns GPU memory on one device to one container.
type AttributionRecord struct {
	ContainerID   string            `json:"container_id"`
	ContainerName string            `json:"container_name"`
	GPUIndex      int               `json:"gpu_index"`
	Method        AttributionMethod `json:"method"`
	MemoryBytes   uint64            `json:"memory_bytes"`
	Confidence    float64           `json:"confidence"`
}

// DeviceAttribution is the per-device result of one attribution pass.
type DeviceAttribution struct {
	GPUIndex int `json:"gpu_index"`

	KnownBytes   uint64 `json:"known_bytes"`
	UnknownBytes uint64 `json:"unknown_bytes"`
	// UnattributedBytes is nonzero only when unknown memory existed
	// but no candidate container could receive it.
	UnattributedBytes uint64 `json:"unattributed_bytes"`

	CandidateCount  int     `json:"candidate_count"`
	Confidence      float64 `json:"confidence"`
	InferenceActive bool    `json:"inference_active"`
	// DeltaClamped is set when the known-process sum exceeded the
	// device's reported used memory and the delta was floored at zero.
	DeltaClamped bool `json:"delta_clamped,omitempty"`

	Records []AttributionRecord `json:"records"`
}
