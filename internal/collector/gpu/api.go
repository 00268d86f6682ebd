package gpu

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	agenterrors "github.com/jenastar/aura-agent/internal/errors"
	"github.com/jenastar/aura-agent/pkg/model"
)

// DeviceAPI abstracts GPU device queries for testability.
type DeviceAPI interface {
	// Snapshot returns the current state of every visible device. A
	// device whose query fails is omitted and err carries a
	// PARTIAL_DEVICE_FAILURE; total failure returns a nil slice and a
	// GPU_UNAVAILABLE error.
	Snapshot(ctx context.Context) ([]model.GPUDevice, error)
	// Close releases the underlying driver handle.
	Close() error
}

// nvmlClient implements DeviceAPI on the go-nvml cgo bindings.
type nvmlClient struct {
	initialized bool
}

// NewNVMLClient creates a DeviceAPI backed by NVML. Initialization is
// lazy so the agent can start on a host where the driver comes up
// later.
func NewNVMLClient() DeviceAPI {
	return &nvmlClient{}
}

func (c *nvmlClient) init() error {
	if c.initialized {
		return nil
	}
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return &agenterrors.AgentError{
			Code:      agenterrors.ErrGPUUnavailable,
			Component: "gpu",
			Message:   fmt.Sprintf("nvml init failed: %s", nvml.ErrorString(ret)),
		}
	}
	c.initialized = true
	return nil
}

func (c *nvmlClient) Close() error {
	if !c.initialized {
		return nil
	}
	_ = nvml.Shutdown()
	c.initialized = false
	return nil
}

func (c *nvmlClient) Snapshot(ctx context.Context) ([]model.GPUDevice, error) {
	_ = ctx // NVML calls are local ioctls and do not block on I/O.

	if err := c.init(); err != nil {
		return nil, err
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, &agenterrors.AgentError{
			Code:      agenterrors.ErrGPUUnavailable,
			Component: "gpu",
			Message:   fmt.Sprintf("nvml device count failed: %s", nvml.ErrorString(ret)),
		}
	}

	devices := make([]model.GPUDevice, 0, count)
	var failed int
	for i := 0; i < count; i++ {
		dev, err := queryDevice(i)
		if err != nil {
			slog.Warn("gpu device query failed", "index", i, "error", err)
			failed++
			continue
		}
		devices = append(devices, dev)
	}

	if failed > 0 {
		return devices, &agenterrors.AgentError{
			Code:      agenterrors.ErrPartialDeviceFailure,
			Component: "gpu",
			Message:   fmt.Sprintf("%d of %d devices failed to query", failed, count),
		}
	}
	return devices, nil
}

func queryDevice(index int) (model.GPUDevice, error) {
	dev, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return model.GPUDevice{}, fmt.Errorf("get handle: %s", nvml.ErrorString(ret))
	}

	mem, ret := dev.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return model.GPUDevice{}, fmt.Errorf("memory info: %s", nvml.ErrorString(ret))
	}

	out := model.GPUDevice{
		Index:            index,
		MemoryTotalBytes: mem.Total,
		MemoryUsedBytes:  mem.Used,
		MemoryFreeBytes:  mem.Free,
	}

	// Name, UUID and utilization are enrichment; a NOT_SUPPORTED here
	// does not fail the device.
	if uuid, ret := dev.GetUUID(); ret == nvml.SUCCESS {
		out.UUID = uuid
	}
	if name, ret := dev.GetName(); ret == nvml.SUCCESS {
		out.Name = name
	}
	if util, ret := dev.GetUtilizationRates(); ret == nvml.SUCCESS {
		out.UtilizationGPU = util.Gpu
		out.UtilizationMemory = util.Memory
	}

	if procs, ret := dev.GetComputeRunningProcesses(); ret == nvml.SUCCESS {
		out.Processes = visibleProcesses(procs)
	}

	return out, nil
}

// visibleProcesses converts the NVML compute process list. Entries
// whose memory is reported as zero, or as the NVML not-available
// sentinel (all-ones, seen on some driver versions and MIG setups),
// carry no attribution signal and are dropped.
func visibleProcesses(procs []nvml.ProcessInfo) []model.GPUProcess {
	out := make([]model.GPUProcess, 0, len(procs))
	for _, p := range procs {
		if p.UsedGpuMemory == 0 || p.UsedGpuMemory == math.MaxUint64 {
			continue
		}
		out = append(out, model.GPUProcess{
			PID:             p.Pid,
			MemoryUsedBytes: p.UsedGpuMemory,
		})
	}
	return out
}
