// Package procmap maps observed GPU process pids to the containers
// that own them, using /proc/<pid>/cgroup as the primary signal and
// the container init pid as a fallback.
package procmap

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jenastar/aura-agent/pkg/model"
)

// Resolver resolves pids against a container set. procRoot is normally
// "/proc" but points at the host's proc mount when the agent runs
// containerized.
type Resolver struct {
	procRoot string
	logger   *slog.Logger
}

// NewResolver creates a Resolver reading under procRoot.
func NewResolver(procRoot string, logger *slog.Logger) *Resolver {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &Resolver{procRoot: procRoot, logger: logger}
}

// ContainerForPID returns the container owning pid, or ok=false when
// the pid belongs to no container in the set. A pid that has exited
// between the GPU sample and this lookup resolves to nothing, which
// callers treat as unattributable rather than an error.
func (r *Resolver) ContainerForPID(pid uint32, containers []model.ContainerInfo) (model.ContainerInfo, bool) {
	cid := r.cgroupContainerID(pid)
	if cid != "" {
		for _, c := range containers {
			if matchesID(c, cid) {
				return c, true
			}
		}
	}

	// Fallback: the pid may be the container's init process observed
	// before docker reported it, or the cgroup file may be unreadable.
	for _, c := range containers {
		if c.InitPID != 0 && uint32(c.InitPID) == pid {
			return c, true
		}
	}
	return model.ContainerInfo{}, false
}

// MapProcesses resolves every GPU process on a device and returns the
// per-container measured byte totals plus the set of bytes no
// container claimed. Multiple processes in the same container are
// summed.
func (r *Resolver) MapProcesses(processes []model.GPUProcess, containers []model.ContainerInfo) (byContainer map[string]uint64, unresolved uint64) {
	byContainer = make(map[string]uint64)
	for _, p := range processes {
		c, ok := r.ContainerForPID(p.PID, containers)
		if !ok {
			unresolved += p.MemoryUsedBytes
			continue
		}
		byContainer[c.ID] += p.MemoryUsedBytes
	}
	return byContainer, unresolved
}

func (r *Resolver) cgroupContainerID(pid uint32) string {
	path := fmt.Sprintf("%s/%d/cgroup", r.procRoot, pid)
	b, err := os.ReadFile(path)
	if err != nil {
		// Process exit between sampling and lookup is routine.
		if !os.IsNotExist(err) && r.logger != nil {
			r.logger.Debug("cgroup read failed", "pid", pid, "error", err)
		}
		return ""
	}
	return ParseCgroup(string(b))
}

// matchesID reports whether cid (12 to 64 hex chars from a cgroup
// path) identifies the container. Short ids are matched by prefix.
func matchesID(c model.ContainerInfo, cid string) bool {
	if len(cid) >= 64 {
		return strings.EqualFold(c.ID, cid)
	}
	return len(c.ID) >= len(cid) && strings.EqualFold(c.ID[:len(cid)], cid)
}
