package attribution

// ConfidenceModel maps candidate-set size to an attribution confidence
// score. Confidence reflects ambiguity only: a single candidate gets
// Base, each additional candidate multiplies by Decay, and an empty
// candidate set scores zero regardless of how much memory is unknown.
type ConfidenceModel struct {
	Base  float64 // confidence with exactly one candidate
	Decay float64 // multiplier per additional candidate
}

// DefaultConfidenceModel matches the documented constants: 0.9 for a
// single candidate, halving per extra candidate.
func DefaultConfidenceModel() ConfidenceModel {
	return ConfidenceModel{Base: 0.9, Decay: 0.5}
}

// Confidence returns the score for a candidate set of size n.
func (m ConfidenceModel) Confidence(n int) float64 {
	if n <= 0 {
		return 0
	}
	c := m.Base
	for i := 1; i < n; i++ {
		c *= m.Decay
	}
	return c
}
