// Package snapshot joins the latest samples from every source into an
// immutable per-cycle view: devices, containers, and the attribution
// of each device's memory to the containers that plausibly hold it.
package snapshot

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jenastar/aura-agent/internal/attribution"
	agenterrors "github.com/jenastar/aura-agent/internal/errors"
	"github.com/jenastar/aura-agent/internal/observability"
	"github.com/jenastar/aura-agent/pkg/model"
)

// DeviceSource supplies the latest GPU sample.
type DeviceSource interface {
	GetDevices() []model.GPUDevice
	Available() bool
}

// ContainerSource supplies the latest container inventory.
type ContainerSource interface {
	GetContainers() []model.ContainerInfo
	Available() bool
}

// StatsSource supplies the latest container stats sample.
type StatsSource interface {
	GetStats() []model.ContainerStats
}

// InferenceSource supplies the latest inference service probe.
type InferenceSource interface {
	GetService() model.InferenceService
}

// PIDMapper resolves a device's process listing to per-container
// measured byte totals.
type PIDMapper interface {
	MapProcesses(processes []model.GPUProcess, containers []model.ContainerInfo) (byContainer map[string]uint64, unresolved uint64)
}

// Builder assembles cycle snapshots. Stats and inference sources are
// optional; a nil source simply leaves its section empty.
type Builder struct {
	devices     DeviceSource
	containers  ContainerSource
	stats       StatsSource
	inference   InferenceSource
	mapper      PIDMapper
	distributor *attribution.Distributor

	errs    *agenterrors.Collector
	metrics *observability.Metrics

	minUnknownBytes uint64
	evictionCycles  uint64
	version         string
}

// NewBuilder creates a Builder over the given sources.
func NewBuilder(
	devices DeviceSource,
	containers ContainerSource,
	stats StatsSource,
	inference InferenceSource,
	mapper PIDMapper,
	distributor *attribution.Distributor,
	errs *agenterrors.Collector,
	metrics *observability.Metrics,
	minUnknownBytes uint64,
	evictionCycles uint64,
	version string,
) *Builder {
	return &Builder{
		devices:         devices,
		containers:      containers,
		stats:           stats,
		inference:       inference,
		mapper:          mapper,
		distributor:     distributor,
		errs:            errs,
		metrics:         metrics,
		minUnknownBytes: minUnknownBytes,
		evictionCycles:  evictionCycles,
		version:         version,
	}
}

// Build assembles the snapshot for one cycle. It never fails: a
// degraded source shrinks the snapshot and sets the corresponding
// health flag instead.
func (b *Builder) Build(cycle uint64) *model.CycleSnapshot {
	devices := b.devices.GetDevices()
	containers := b.containers.GetContainers()

	snap := &model.CycleSnapshot{
		CycleID:      uuid.NewString(),
		Cycle:        cycle,
		Timestamp:    time.Now().UnixMilli(),
		AgentVersion: b.version,
		Devices:      devices,
		Containers:   containers,
	}

	var totalUnknown uint64
	for _, dev := range devices {
		da := b.attributeDevice(dev, containers, cycle)
		totalUnknown += da.UnknownBytes
		snap.Attributions = append(snap.Attributions, da)
	}

	evicted := b.distributor.Profiles().Evict(cycle, b.evictionCycles)
	if evicted > 0 {
		b.metrics.ProfileEvictionsTotal.Add(float64(evicted))
		slog.Debug("evicted stale profiles", "count", evicted)
	}
	b.metrics.ProfileEntries.Set(float64(b.distributor.Profiles().Len()))

	snap.Scores = b.scoreContainers(containers, totalUnknown)

	if b.stats != nil {
		snap.Stats = b.stats.GetStats()
	}
	if b.inference != nil {
		svc := b.inference.GetService()
		snap.Inference = &svc
	}

	snap.Summary = summarize(snap)
	snap.Health = model.CycleHealth{
		GPUDegraded:      !b.devices.Available(),
		RegistryDegraded: !b.containers.Available(),
		ActiveErrors:     b.errs.ActiveCodes(),
	}
	return snap
}

// attributeDevice runs the measured and inferred passes for one device.
func (b *Builder) attributeDevice(dev model.GPUDevice, containers []model.ContainerInfo, cycle uint64) model.DeviceAttribution {
	gpuLabel := fmt.Sprint(dev.Index)

	byContainer, _ := b.mapper.MapProcesses(dev.Processes, containers)

	mapped := make(map[string]bool, len(byContainer))
	byID := make(map[string]model.ContainerInfo, len(containers))
	for _, c := range containers {
		byID[c.ID] = c
	}

	da := model.DeviceAttribution{GPUIndex: dev.Index}

	measuredIDs := make([]string, 0, len(byContainer))
	for id := range byContainer {
		measuredIDs = append(measuredIDs, id)
	}
	sort.Strings(measuredIDs)
	for _, id := range measuredIDs {
		mapped[id] = true
		c := byID[id]
		da.Records = append(da.Records, model.AttributionRecord{
			ContainerID:   c.ShortID,
			ContainerName: c.Name,
			GPUIndex:      dev.Index,
			Method:        model.MethodMeasured,
			MemoryBytes:   byContainer[id],
			Confidence:    1.0,
		})
	}

	known, unknown, clamped := attribution.ComputeUnknown(dev.MemoryUsedBytes, dev.Processes)
	da.KnownBytes = known
	da.UnknownBytes = unknown
	da.DeltaClamped = clamped
	da.InferenceActive = unknown >= b.minUnknownBytes

	if clamped {
		b.metrics.NegativeDeltaTotal.WithLabelValues(gpuLabel).Inc()
		b.errs.Report(agenterrors.AgentError{
			Code:      agenterrors.ErrNegativeDelta,
			Component: "attribution",
			Message:   fmt.Sprintf("gpu %d: process sum exceeds reported used memory", dev.Index),
			Timestamp: time.Now().Unix(),
		})
	}

	candidates := attribution.SelectCandidates(containers, mapped)
	da.CandidateCount = len(candidates)
	b.metrics.AttributionCandidates.WithLabelValues(gpuLabel).Set(float64(len(candidates)))

	if unknown == 0 {
		// No pool to split, but the candidates are still present and
		// unexplained; keep their profiles alive for when the
		// workload resumes.
		for _, c := range candidates {
			b.distributor.Profiles().Touch(c.ID, cycle)
		}
		da.Confidence = b.distributor.Confidence(len(candidates))
		return da
	}
	if len(candidates) == 0 {
		da.UnattributedBytes = unknown
		da.Confidence = 0
		return da
	}

	inferred, confidence := b.distributor.Distribute(dev.Index, unknown, candidates, cycle)
	da.Records = append(da.Records, inferred...)
	da.Confidence = confidence
	return da
}

// scoreContainers publishes the GPU-likelihood score for every
// entitled container, whether or not it received memory this cycle.
func (b *Builder) scoreContainers(containers []model.ContainerInfo, unknownPool uint64) []model.ContainerScore {
	var out []model.ContainerScore
	for _, c := range containers {
		if !c.GPUEntitled {
			continue
		}
		out = append(out, model.ContainerScore{
			ContainerID:   c.ShortID,
			ContainerName: c.Name,
			Score:         b.distributor.Likelihood(c, unknownPool),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContainerID < out[j].ContainerID })
	return out
}

func summarize(snap *model.CycleSnapshot) model.CycleSummary {
	s := model.CycleSummary{
		DeviceCount:    len(snap.Devices),
		ContainerCount: len(snap.Containers),
	}
	for _, c := range snap.Containers {
		if c.GPUEntitled {
			s.GPUEntitledCount++
		}
	}
	for _, d := range snap.Devices {
		s.VisibleProcessCount += len(d.Processes)
		s.TotalUsedBytes += d.MemoryUsedBytes
	}
	for _, a := range snap.Attributions {
		s.TotalKnownBytes += a.KnownBytes
		s.TotalUnknownBytes += a.UnknownBytes
		s.UnattributedBytes += a.UnattributedBytes
		for _, r := range a.Records {
			if r.Method == model.MethodInferred {
				s.TotalInferredBytes += r.MemoryBytes
			}
		}
	}
	return s
}
