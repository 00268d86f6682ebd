package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jenastar/aura-agent/internal/attribution"
	agenterrors "github.com/jenastar/aura-agent/internal/errors"
	"github.com/jenastar/aura-agent/internal/observability"
	"github.com/jenastar/aura-agent/pkg/model"
)

const mib = 1024 * 1024

type fakeDevices struct {
	devices   []model.GPUDevice
	available bool
}

func (f *fakeDevices) GetDevices() []model.GPUDevice { return f.devices }
func (f *fakeDevices) Available() bool               { return f.available }

type fakeContainers struct {
	containers []model.ContainerInfo
	available  bool
}

func (f *fakeContainers) GetContainers() []model.ContainerInfo { return f.containers }
func (f *fakeContainers) Available() bool                      { return f.available }

type fakeStats []model.ContainerStats

func (f fakeStats) GetStats() []model.ContainerStats { return f }

type fakeInference model.InferenceService

func (f fakeInference) GetService() model.InferenceService { return model.InferenceService(f) }

// fakeMapper resolves pids through a static table.
type fakeMapper map[uint32]string

func (f fakeMapper) MapProcesses(processes []model.GPUProcess, containers []model.ContainerInfo) (map[string]uint64, uint64) {
	byID := make(map[string]model.ContainerInfo)
	for _, c := range containers {
		byID[c.ID] = c
	}
	byContainer := make(map[string]uint64)
	var unresolved uint64
	for _, p := range processes {
		id, ok := f[p.PID]
		if !ok {
			unresolved += p.MemoryUsedBytes
			continue
		}
		if _, ok := byID[id]; !ok {
			unresolved += p.MemoryUsedBytes
			continue
		}
		byContainer[id] += p.MemoryUsedBytes
	}
	return byContainer, unresolved
}

const (
	idX = "aaaaaaaaaaaa1111111111111111111111111111111111111111111111111111"
	idQ = "bbbbbbbbbbbb2222222222222222222222222222222222222222222222222222"
	idR = "cccccccccccc3333333333333333333333333333333333333333333333333333"
)

func entitled(id, name string) model.ContainerInfo {
	return model.ContainerInfo{
		ID: id, ShortID: id[:12], Name: name,
		GPUEntitled: true, Running: true, Status: "running",
	}
}

type builderEnv struct {
	devices    *fakeDevices
	containers *fakeContainers
	mapper     fakeMapper
	errs       *agenterrors.Collector
	builder    *Builder
}

func newBuilderEnv(devices []model.GPUDevice, containers []model.ContainerInfo, mapper fakeMapper) *builderEnv {
	env := &builderEnv{
		devices:    &fakeDevices{devices: devices, available: true},
		containers: &fakeContainers{containers: containers, available: true},
		mapper:     mapper,
		errs:       agenterrors.NewCollector(agenterrors.RealClock{}),
	}
	dist := attribution.NewDistributor(
		attribution.NewPatternScorer(),
		attribution.NewProfileStore(0.3),
		attribution.DefaultConfidenceModel(),
	)
	env.builder = NewBuilder(
		env.devices, env.containers, nil, nil,
		env.mapper, dist, env.errs, observability.NewMetrics(),
		100*mib, 60, "test",
	)
	return env
}

func TestBuild_MeasuredAndInferred(t *testing.T) {
	// One device with 10000 MiB used. Container X holds a visible
	// 2000 MiB process; the remaining 8000 MiB goes to the sole
	// invisible candidate Q.
	devices := []model.GPUDevice{{
		Index:            0,
		MemoryTotalBytes: 12000 * mib,
		MemoryUsedBytes:  10000 * mib,
		MemoryFreeBytes:  2000 * mib,
		Processes:        []model.GPUProcess{{PID: 100, MemoryUsedBytes: 2000 * mib}},
	}}
	containers := []model.ContainerInfo{
		entitled(idX, "training"),
		entitled(idQ, "ollama"),
	}
	env := newBuilderEnv(devices, containers, fakeMapper{100: idX})

	snap := env.builder.Build(1)

	require.Len(t, snap.Attributions, 1)
	da := snap.Attributions[0]
	assert.Equal(t, uint64(2000*mib), da.KnownBytes)
	assert.Equal(t, uint64(8000*mib), da.UnknownBytes)
	assert.Zero(t, da.UnattributedBytes)
	assert.False(t, da.DeltaClamped)
	assert.True(t, da.InferenceActive)
	assert.Equal(t, 1, da.CandidateCount)
	assert.InDelta(t, 0.9, da.Confidence, 1e-9)

	require.Len(t, da.Records, 2)
	measured := da.Records[0]
	assert.Equal(t, model.MethodMeasured, measured.Method)
	assert.Equal(t, "training", measured.ContainerName)
	assert.Equal(t, uint64(2000*mib), measured.MemoryBytes)
	assert.InDelta(t, 1.0, measured.Confidence, 1e-9)

	inferred := da.Records[1]
	assert.Equal(t, model.MethodInferred, inferred.Method)
	assert.Equal(t, "ollama", inferred.ContainerName)
	assert.Equal(t, uint64(8000*mib), inferred.MemoryBytes)
	assert.InDelta(t, 0.9, inferred.Confidence, 1e-9)
}

func TestBuild_TwoCandidatesLowerConfidence(t *testing.T) {
	devices := []model.GPUDevice{{
		Index:           0,
		MemoryUsedBytes: 8000 * mib,
	}}
	containers := []model.ContainerInfo{
		entitled(idQ, "worker-a"),
		entitled(idR, "worker-b"),
	}
	env := newBuilderEnv(devices, containers, fakeMapper{})

	snap := env.builder.Build(1)

	da := snap.Attributions[0]
	assert.Equal(t, 2, da.CandidateCount)
	assert.InDelta(t, 0.45, da.Confidence, 1e-9)
	require.Len(t, da.Records, 2)
	assert.Equal(t, uint64(4000*mib), da.Records[0].MemoryBytes)
	assert.Equal(t, uint64(4000*mib), da.Records[1].MemoryBytes)
}

func TestBuild_NoCandidatesUnattributed(t *testing.T) {
	devices := []model.GPUDevice{{
		Index:           0,
		MemoryUsedBytes: 5000 * mib,
	}}
	env := newBuilderEnv(devices, nil, fakeMapper{})

	snap := env.builder.Build(1)

	da := snap.Attributions[0]
	assert.Equal(t, uint64(5000*mib), da.UnknownBytes)
	assert.Equal(t, uint64(5000*mib), da.UnattributedBytes)
	assert.Zero(t, da.Confidence)
	assert.Empty(t, da.Records)
	assert.Equal(t, uint64(5000*mib), snap.Summary.UnattributedBytes)
}

func TestBuild_NegativeDeltaClamped(t *testing.T) {
	// Driver reports less used memory than the process sum; the
	// unknown pool floors at zero instead of going negative.
	devices := []model.GPUDevice{{
		Index:           0,
		MemoryUsedBytes: 1000 * mib,
		Processes:       []model.GPUProcess{{PID: 100, MemoryUsedBytes: 1500 * mib}},
	}}
	containers := []model.ContainerInfo{entitled(idX, "training")}
	env := newBuilderEnv(devices, containers, fakeMapper{100: idX})

	snap := env.builder.Build(1)

	da := snap.Attributions[0]
	assert.True(t, da.DeltaClamped)
	assert.Zero(t, da.UnknownBytes)
	assert.Equal(t, uint64(1500*mib), da.KnownBytes)
	assert.False(t, da.InferenceActive)

	// Only the measured record; nothing to infer.
	require.Len(t, da.Records, 1)
	assert.Equal(t, model.MethodMeasured, da.Records[0].Method)

	assert.Contains(t, env.errs.ActiveCodes(), string(agenterrors.ErrNegativeDelta))
	assert.Contains(t, snap.Health.ActiveErrors, string(agenterrors.ErrNegativeDelta))
}

func TestBuild_SmallUnknownNotInferenceActive(t *testing.T) {
	devices := []model.GPUDevice{{
		Index:           0,
		MemoryUsedBytes: 50 * mib, // below the 100 MiB activity threshold
	}}
	containers := []model.ContainerInfo{entitled(idQ, "ollama")}
	env := newBuilderEnv(devices, containers, fakeMapper{})

	snap := env.builder.Build(1)

	da := snap.Attributions[0]
	assert.False(t, da.InferenceActive)
	// The memory is still distributed; the threshold only gates the
	// activity signal.
	require.Len(t, da.Records, 1)
	assert.Equal(t, uint64(50*mib), da.Records[0].MemoryBytes)
}

func TestBuild_IdleCandidateKeepsProfile(t *testing.T) {
	// A container that stays GPU-entitled with no visible process is
	// still a candidate every cycle, even while the device has no
	// unknown memory to split. Its learned history must survive past
	// the eviction threshold so the weight is intact when the
	// workload resumes.
	devices := []model.GPUDevice{{
		Index:            0,
		MemoryTotalBytes: 12000 * mib,
		MemoryUsedBytes:  0,
		MemoryFreeBytes:  12000 * mib,
	}}
	env := newBuilderEnv(devices, []model.ContainerInfo{entitled(idQ, "ollama")}, fakeMapper{})

	profiles := env.builder.distributor.Profiles()
	profiles.Observe(idQ, 4000*mib, 1)

	// Eviction threshold is 60 cycles; run well past it.
	for cycle := uint64(2); cycle <= 70; cycle++ {
		env.builder.Build(cycle)
	}

	p, ok := profiles.Get(idQ)
	require.True(t, ok, "profile evicted while the container was a candidate every cycle")
	assert.Equal(t, uint64(70), p.LastSeenCycle)
	assert.InDelta(t, float64(4000*mib), p.MovingAverageBytes, 1)
}

func TestBuild_DegradedSourcesFlagged(t *testing.T) {
	env := newBuilderEnv(nil, nil, fakeMapper{})
	env.devices.available = false
	env.containers.available = false

	snap := env.builder.Build(1)

	assert.True(t, snap.Health.GPUDegraded)
	assert.True(t, snap.Health.RegistryDegraded)
	assert.Empty(t, snap.Attributions)
}

func TestBuild_MeasuredContainerNotACandidate(t *testing.T) {
	// X already has a visible process on the device, so the unknown
	// pool goes entirely to Q even though X is entitled and running.
	devices := []model.GPUDevice{{
		Index:           0,
		MemoryUsedBytes: 3000 * mib,
		Processes:       []model.GPUProcess{{PID: 100, MemoryUsedBytes: 1000 * mib}},
	}}
	containers := []model.ContainerInfo{
		entitled(idX, "training"),
		entitled(idQ, "ollama"),
	}
	env := newBuilderEnv(devices, containers, fakeMapper{100: idX})

	snap := env.builder.Build(1)

	da := snap.Attributions[0]
	assert.Equal(t, 1, da.CandidateCount)
	var inferredTo string
	for _, r := range da.Records {
		if r.Method == model.MethodInferred {
			inferredTo = r.ContainerName
		}
	}
	assert.Equal(t, "ollama", inferredTo)
}

func TestBuild_SummaryTotals(t *testing.T) {
	devices := []model.GPUDevice{
		{
			Index:           0,
			MemoryUsedBytes: 10000 * mib,
			Processes:       []model.GPUProcess{{PID: 100, MemoryUsedBytes: 2000 * mib}},
		},
		{
			Index:           1,
			MemoryUsedBytes: 4000 * mib,
		},
	}
	containers := []model.ContainerInfo{
		entitled(idX, "training"),
		entitled(idQ, "ollama"),
	}
	env := newBuilderEnv(devices, containers, fakeMapper{100: idX})

	snap := env.builder.Build(1)

	s := snap.Summary
	assert.Equal(t, 2, s.DeviceCount)
	assert.Equal(t, 2, s.ContainerCount)
	assert.Equal(t, 2, s.GPUEntitledCount)
	assert.Equal(t, 1, s.VisibleProcessCount)
	assert.Equal(t, uint64(14000*mib), s.TotalUsedBytes)
	assert.Equal(t, uint64(2000*mib), s.TotalKnownBytes)
	assert.Equal(t, uint64(12000*mib), s.TotalUnknownBytes)
	assert.Equal(t, uint64(12000*mib), s.TotalInferredBytes)
	assert.Zero(t, s.UnattributedBytes)
}

func TestBuild_ScoresForEntitledContainers(t *testing.T) {
	containers := []model.ContainerInfo{
		entitled(idQ, "ollama"),
		entitled(idX, "batch"),
		{ID: idR, ShortID: idR[:12], Name: "plain", Running: true},
	}
	env := newBuilderEnv(nil, containers, fakeMapper{})

	snap := env.builder.Build(1)

	require.Len(t, snap.Scores, 2, "only entitled containers are scored")
	byName := make(map[string]float64)
	for _, s := range snap.Scores {
		byName[s.ContainerName] = s.Score
	}
	assert.Greater(t, byName["ollama"], byName["batch"])
}

func TestBuild_OptionalSources(t *testing.T) {
	env := newBuilderEnv(nil, nil, fakeMapper{})

	snap := env.builder.Build(1)
	assert.Nil(t, snap.Stats)
	assert.Nil(t, snap.Inference)

	stats := fakeStats{{ContainerID: "abc", ContainerName: "ollama", CPUPercent: 12.5}}
	svc := fakeInference{Host: "127.0.0.1:11434", Up: true}
	dist := attribution.NewDistributor(nil, attribution.NewProfileStore(0.3), attribution.DefaultConfidenceModel())
	b := NewBuilder(env.devices, env.containers, stats, svc, env.mapper, dist,
		env.errs, observability.NewMetrics(), 100*mib, 60, "test")

	snap = b.Build(2)
	require.Len(t, snap.Stats, 1)
	require.NotNil(t, snap.Inference)
	assert.True(t, snap.Inference.Up)
}

func TestBuild_CycleIdentity(t *testing.T) {
	env := newBuilderEnv(nil, nil, fakeMapper{})

	s1 := env.builder.Build(1)
	s2 := env.builder.Build(2)

	assert.Equal(t, uint64(1), s1.Cycle)
	assert.Equal(t, uint64(2), s2.Cycle)
	assert.NotEqual(t, s1.CycleID, s2.CycleID)
	assert.NotZero(t, s1.Timestamp)
	assert.Equal(t, "test", s1.AgentVersion)
}
