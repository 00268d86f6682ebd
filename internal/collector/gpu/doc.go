// Package gpu polls NVML for per-device memory, utilization, and the
// compute process list. A failed poll leaves the previous sample in
// place and marks the source unavailable rather than failing the
// agent.
package gpu
