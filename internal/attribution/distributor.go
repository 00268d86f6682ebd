package attribution

import (
	"math"
	"sort"

	"github.com/jenastar/aura-agent/pkg/model"
)

// Distributor splits a device's unknown memory across candidate
// containers and maintains the historical profile store as a side
// effect. It is the profile store's single writer.
type Distributor struct {
	scorer   Scorer
	profiles *ProfileStore
	conf     ConfidenceModel
}

// NewDistributor creates a Distributor.
func NewDistributor(scorer Scorer, profiles *ProfileStore, conf ConfidenceModel) *Distributor {
	if scorer == nil {
		scorer = NopScorer{}
	}
	return &Distributor{scorer: scorer, profiles: profiles, conf: conf}
}

// Profiles exposes the underlying profile store.
func (d *Distributor) Profiles() *ProfileStore { return d.profiles }

// Confidence returns the confidence for a candidate set of size n.
func (d *Distributor) Confidence(n int) float64 { return d.conf.Confidence(n) }

// SelectCandidates returns the containers eligible to receive unknown
// memory: GPU-entitled, running, and with no visible compute process
// mapped to them this cycle. The result is sorted by ascending
// container id so downstream output is deterministic.
func SelectCandidates(containers []model.ContainerInfo, mapped map[string]bool) []model.ContainerInfo {
	var out []model.ContainerInfo
	for _, c := range containers {
		if !c.GPUEntitled || !c.Running {
			continue
		}
		if mapped[c.ID] {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Distribute splits unknownBytes across the candidates by weight and
// returns the inferred attribution records plus the device confidence.
//
// Weights are pattern_score(name) * history_factor(profile); a
// candidate with no signal on either axis weighs exactly 1.0.
// Integer byte shares are assigned by largest remainder so the records
// sum to unknownBytes exactly whenever the candidate set is non-empty.
// Every candidate that receives bytes has its profile updated; the
// rest are touched so they survive eviction while still unexplained.
func (d *Distributor) Distribute(gpuIndex int, unknownBytes uint64, candidates []model.ContainerInfo, cycle uint64) ([]model.AttributionRecord, float64) {
	if len(candidates) == 0 {
		return nil, d.conf.Confidence(0)
	}

	// Candidates arrive sorted by id; keep that order so remainder
	// ties break toward the lower container id.
	sorted := make([]model.ContainerInfo, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	weights := make([]float64, len(sorted))
	var totalWeight float64
	for i, c := range sorted {
		p, ok := d.profiles.Get(c.ID)
		w := d.scorer.Score(c.Name) * HistoryFactor(p, ok, unknownBytes)
		weights[i] = w
		totalWeight += w
	}

	confidence := d.conf.Confidence(len(sorted))
	shares := splitByWeight(unknownBytes, weights, totalWeight)

	records := make([]model.AttributionRecord, 0, len(sorted))
	for i, c := range sorted {
		if shares[i] > 0 {
			d.profiles.Observe(c.ID, shares[i], cycle)
		} else {
			d.profiles.Touch(c.ID, cycle)
		}
		records = append(records, model.AttributionRecord{
			ContainerID:   c.ShortID,
			ContainerName: c.Name,
			GPUIndex:      gpuIndex,
			Method:        model.MethodInferred,
			MemoryBytes:   shares[i],
			Confidence:    confidence,
		})
	}
	return records, confidence
}

// Likelihood is the published GPU-likelihood score for a candidate:
// half from the name pattern, half from how much of the current pool
// the container's history accounts for.
func (d *Distributor) Likelihood(c model.ContainerInfo, unknownPool uint64) float64 {
	score := 0.0
	if d.scorer.Score(c.Name) > 1.0 {
		score += 0.5
	}
	if p, ok := d.profiles.Get(c.ID); ok && unknownPool > 0 && p.SampleCount > 0 {
		ratio := p.MovingAverageBytes / float64(unknownPool)
		if ratio > 1 {
			ratio = 1
		}
		score += 0.5 * ratio
	}
	return score
}

// splitByWeight divides total into integer shares proportional to
// weights, using largest-remainder assignment so the shares sum to
// total exactly. Ties go to the earliest index.
func splitByWeight(total uint64, weights []float64, totalWeight float64) []uint64 {
	n := len(weights)
	shares := make([]uint64, n)
	if n == 0 || totalWeight <= 0 || total == 0 {
		return shares
	}

	type frac struct {
		idx int
		rem float64
	}
	var assigned uint64
	fracs := make([]frac, n)
	for i, w := range weights {
		exact := float64(total) * w / totalWeight
		base := math.Floor(exact)
		shares[i] = uint64(base)
		assigned += shares[i]
		fracs[i] = frac{idx: i, rem: exact - base}
	}

	sort.SliceStable(fracs, func(i, j int) bool { return fracs[i].rem > fracs[j].rem })

	leftover := total - assigned
	for i := uint64(0); i < leftover; i++ {
		shares[fracs[i%uint64(n)].idx]++
	}
	return shares
}
