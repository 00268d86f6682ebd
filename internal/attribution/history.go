package attribution

import (
	"github.com/jenastar/aura-agent/internal/store"
)

// Profile is the cycle-persistent record of a container's inferred GPU
// memory consumption. It lives for the process lifetime only.
type Profile struct {
	MovingAverageBytes float64 `json:"moving_average_bytes"`
	SampleCount        uint64  `json:"sample_count"`
	LastSeenCycle      uint64  `json:"last_seen_cycle"`
}

// ProfileStore tracks a smoothed average of inferred attribution per
// container across cycles. The distributor is its only writer; the
// health server reads it for the debug endpoint.
type ProfileStore struct {
	profiles *store.TypedStore[Profile]
	alpha    float64
}

// NewProfileStore creates a ProfileStore with the given EWMA constant.
func NewProfileStore(alpha float64) *ProfileStore {
	return &ProfileStore{
		profiles: store.NewTypedStore[Profile](),
		alpha:    alpha,
	}
}

// Observe folds one cycle's attributed bytes into the container's
// moving average: avg = alpha*observed + (1-alpha)*avg.
func (ps *ProfileStore) Observe(containerID string, attributedBytes uint64, cycle uint64) {
	ps.profiles.Update(containerID, func(p Profile, exists bool) Profile {
		if !exists {
			return Profile{
				MovingAverageBytes: float64(attributedBytes),
				SampleCount:        1,
				LastSeenCycle:      cycle,
			}
		}
		p.MovingAverageBytes = ps.alpha*float64(attributedBytes) + (1-ps.alpha)*p.MovingAverageBytes
		p.SampleCount++
		p.LastSeenCycle = cycle
		return p
	})
}

// Touch refreshes LastSeenCycle without changing the average. Called
// for candidates that received no memory this cycle so they are not
// evicted while still GPU-entitled and unexplained.
func (ps *ProfileStore) Touch(containerID string, cycle uint64) {
	ps.profiles.Update(containerID, func(p Profile, exists bool) Profile {
		if !exists {
			return Profile{LastSeenCycle: cycle}
		}
		p.LastSeenCycle = cycle
		return p
	})
}

// Get returns the profile for a container, if any.
func (ps *ProfileStore) Get(containerID string) (Profile, bool) {
	return ps.profiles.Get(containerID)
}

// Evict removes entries not seen for more than threshold cycles and
// returns how many were dropped.
func (ps *ProfileStore) Evict(currentCycle, threshold uint64) int {
	return ps.profiles.DeleteFunc(func(_ string, p Profile) bool {
		return currentCycle > p.LastSeenCycle && currentCycle-p.LastSeenCycle > threshold
	})
}

// Len returns the number of tracked profiles.
func (ps *ProfileStore) Len() int {
	return ps.profiles.Len()
}

// Snapshot returns a copy of all profiles for the debug endpoint.
func (ps *ProfileStore) Snapshot() map[string]Profile {
	return ps.profiles.Snapshot()
}

// HistoryFactor derives a weight multiplier from a container's profile
// relative to the device's current unknown pool. Containers that have
// historically consumed more get a proportionally larger share, capped
// at 2x so history can bias but never dominate the pattern score.
// No profile, or an empty pool, means no signal and a factor of 1.
func HistoryFactor(p Profile, exists bool, unknownPool uint64) float64 {
	if !exists || unknownPool == 0 || p.SampleCount == 0 {
		return 1.0
	}
	ratio := p.MovingAverageBytes / float64(unknownPool)
	if ratio > 1 {
		ratio = 1
	}
	return 1 + ratio
}
