package attribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileStore_FirstObservationSeedsAverage(t *testing.T) {
	ps := NewProfileStore(0.3)
	ps.Observe("c1", 1000, 1)

	p, ok := ps.Get("c1")
	require.True(t, ok)
	assert.Equal(t, 1000.0, p.MovingAverageBytes)
	assert.Equal(t, uint64(1), p.SampleCount)
	assert.Equal(t, uint64(1), p.LastSeenCycle)
}

func TestProfileStore_EWMAUpdate(t *testing.T) {
	ps := NewProfileStore(0.3)
	ps.Observe("c1", 1000, 1)
	ps.Observe("c1", 2000, 2)

	p, _ := ps.Get("c1")
	// 0.3*2000 + 0.7*1000 = 1300
	assert.InDelta(t, 1300.0, p.MovingAverageBytes, 1e-9)
	assert.Equal(t, uint64(2), p.SampleCount)
	assert.Equal(t, uint64(2), p.LastSeenCycle)
}

func TestProfileStore_ConvergesToConstantInput(t *testing.T) {
	// Feeding the same value repeatedly must converge on that value
	// within a bounded number of cycles.
	ps := NewProfileStore(0.3)
	const target = 8 << 30

	ps.Observe("c1", 1, 1) // seed far away from the target
	for cycle := uint64(2); cycle <= 60; cycle++ {
		ps.Observe("c1", target, cycle)
	}

	p, _ := ps.Get("c1")
	assert.Less(t, math.Abs(p.MovingAverageBytes-target)/target, 1e-6)
}

func TestProfileStore_Eviction(t *testing.T) {
	ps := NewProfileStore(0.3)
	ps.Observe("stale", 1000, 10)
	ps.Observe("fresh", 1000, 70)

	evicted := ps.Evict(71, 60)
	assert.Equal(t, 1, evicted)

	_, ok := ps.Get("stale")
	assert.False(t, ok)
	_, ok = ps.Get("fresh")
	assert.True(t, ok)
}

func TestProfileStore_EvictionBoundary(t *testing.T) {
	ps := NewProfileStore(0.3)
	ps.Observe("edge", 1000, 10)

	// Exactly threshold cycles unseen: kept.
	assert.Zero(t, ps.Evict(70, 60))
	// One past the threshold: gone.
	assert.Equal(t, 1, ps.Evict(71, 60))
}

func TestProfileStore_TouchKeepsEntryAlive(t *testing.T) {
	ps := NewProfileStore(0.3)
	ps.Observe("c1", 1000, 1)
	ps.Touch("c1", 65)

	assert.Zero(t, ps.Evict(70, 60))

	p, _ := ps.Get("c1")
	assert.Equal(t, 1000.0, p.MovingAverageBytes, "Touch must not change the average")
	assert.Equal(t, uint64(65), p.LastSeenCycle)
}

func TestHistoryFactor(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		exists  bool
		pool    uint64
		want    float64
	}{
		{"no profile", Profile{}, false, 1000, 1.0},
		{"empty pool", Profile{MovingAverageBytes: 500, SampleCount: 3}, true, 0, 1.0},
		{"no samples", Profile{LastSeenCycle: 5}, true, 1000, 1.0},
		{"half of pool", Profile{MovingAverageBytes: 500, SampleCount: 3}, true, 1000, 1.5},
		{"full pool", Profile{MovingAverageBytes: 1000, SampleCount: 3}, true, 1000, 2.0},
		{"above pool capped", Profile{MovingAverageBytes: 5000, SampleCount: 3}, true, 1000, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HistoryFactor(tt.profile, tt.exists, tt.pool), 1e-9)
		})
	}
}
