package attribution

import "github.com/jenastar/aura-agent/pkg/model"

// ComputeUnknown splits a device's reported used memory into the part
// accounted for by visible compute processes and the remainder.
//
// The device memory read and the process listing are not atomic, so
// the known sum can transiently exceed the reported used figure. That
// is not an error: the delta is floored at zero and the clamp is
// reported so the caller can count it as an anomaly.
func ComputeUnknown(usedBytes uint64, processes []model.GPUProcess) (known, unknown uint64, clamped bool) {
	for _, p := range processes {
		known += p.MemoryUsedBytes
	}
	if known > usedBytes {
		return known, 0, true
	}
	return known, usedBytes - known, false
}
