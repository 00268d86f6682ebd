package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jenastar/aura-agent/pkg/model"
)

func TestComputeUnknown(t *testing.T) {
	procs := []model.GPUProcess{
		{PID: 100, MemoryUsedBytes: 1500},
		{PID: 200, MemoryUsedBytes: 500},
	}

	known, unknown, clamped := ComputeUnknown(10000, procs)
	assert.Equal(t, uint64(2000), known)
	assert.Equal(t, uint64(8000), unknown)
	assert.False(t, clamped)
}

func TestComputeUnknown_NoProcesses(t *testing.T) {
	known, unknown, clamped := ComputeUnknown(4096, nil)
	assert.Equal(t, uint64(0), known)
	assert.Equal(t, uint64(4096), unknown)
	assert.False(t, clamped)
}

func TestComputeUnknown_ClampsNegativeDelta(t *testing.T) {
	// Non-atomic reads can make the known sum exceed the reported
	// used figure; the delta must floor at zero, flagged as a clamp.
	procs := []model.GPUProcess{{PID: 1, MemoryUsedBytes: 5000}}

	known, unknown, clamped := ComputeUnknown(4000, procs)
	assert.Equal(t, uint64(5000), known)
	assert.Equal(t, uint64(0), unknown)
	assert.True(t, clamped)
}

func TestComputeUnknown_ExactMatch(t *testing.T) {
	procs := []model.GPUProcess{{PID: 1, MemoryUsedBytes: 4000}}

	known, unknown, clamped := ComputeUnknown(4000, procs)
	assert.Equal(t, uint64(4000), known)
	assert.Equal(t, uint64(0), unknown)
	assert.False(t, clamped)
}
