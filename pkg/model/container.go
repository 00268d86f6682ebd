package model

// ContainerInfo represents a running container from the Docker daemon.
type ContainerInfo struct {
	ID      string `json:"id"`       // full 64-char id
	ShortID string `json:"short_id"` // first 12 chars, used in metric labels
	Name    string `json:"name"`

	Labels  map[string]string `json:"labels,omitempty"`
	Project string            `json:"project"`

	// GPUEntitled is true when the container was started with GPU
	// access: nvidia runtime, an nvidia device request, or an
	// NVIDIA_VISIBLE_DEVICES value other than none/void.
	GPUEntitled bool   `json:"gpu_entitled"`
	Runtime     string `json:"runtime,omitempty"`

	// InitPID is the host pid of the container's init process,
	// used for pid-to-container matching.
	InitPID      int    `json:"init_pid"`
	CgroupParent string `json:"cgroup_parent,omitempty"`

	Status       string `json:"status"`
	Running      bool   `json:"running"`
	RestartCount int    `json:"restart_count"`
}

// ContainerScore is the GPU-likelihood score published per container.
type ContainerScore struct {
	ContainerID   string  `json:"container_id"`
	ContainerName string  `json:"container_name"`
	Score         float64 `json:"score"`
}
