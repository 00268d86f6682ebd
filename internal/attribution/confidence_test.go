package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidence_EmptyCandidateSet(t *testing.T) {
	m := DefaultConfidenceModel()
	assert.Zero(t, m.Confidence(0))
	assert.Zero(t, m.Confidence(-1))
}

func TestConfidence_SingleCandidateIsBase(t *testing.T) {
	m := DefaultConfidenceModel()
	assert.InDelta(t, 0.9, m.Confidence(1), 1e-9)
}

func TestConfidence_HalvesPerAdditionalCandidate(t *testing.T) {
	m := DefaultConfidenceModel()
	assert.InDelta(t, 0.45, m.Confidence(2), 1e-9)
	assert.InDelta(t, 0.225, m.Confidence(3), 1e-9)
}

func TestConfidence_StrictlyDecreasing(t *testing.T) {
	m := DefaultConfidenceModel()
	prev := m.Confidence(1)
	for n := 2; n <= 10; n++ {
		c := m.Confidence(n)
		assert.Less(t, c, prev, "confidence must decrease with ambiguity (n=%d)", n)
		prev = c
	}
}

func TestConfidence_CustomConstants(t *testing.T) {
	m := ConfidenceModel{Base: 0.8, Decay: 0.25}
	assert.InDelta(t, 0.8, m.Confidence(1), 1e-9)
	assert.InDelta(t, 0.2, m.Confidence(2), 1e-9)
}
