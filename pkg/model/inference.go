package model

// InferenceService describes the state of a local inference runtime
// (Ollama) probed over its HTTP API.
type InferenceService struct {
	Host string `json:"host"`
	Up   bool   `json:"up"`

	// TagsLatencySeconds is the response time of the model-listing call.
	TagsLatencySeconds float64 `json:"tags_latency_seconds"`

	Models []InferenceModel `json:"models"`
}

// InferenceModel is one model known to the inference runtime.
// VRAMBytes is nonzero only for models currently loaded on a GPU.
type InferenceModel struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	VRAMBytes int64  `json:"vram_bytes,omitempty"`
	Loaded    bool   `json:"loaded"`
}
