package attribution

import "strings"

// Scorer assigns a name-based weight multiplier to a container.
// Implementations must return 1.0 when the name carries no signal, so
// that an uninformative scorer leaves the distribution uniform.
type Scorer interface {
	Score(containerName string) float64
}

// defaultIndicators are substrings that mark a container name as a
// likely inference workload.
var defaultIndicators = []string{
	"ollama", "llama", "vllm", "gpt", "llm",
	"inference", "model", "triton", "embed",
}

// llmBoost is the weight multiplier for names matching an indicator.
const llmBoost = 2.0

// PatternScorer boosts containers whose names look like LLM or
// inference workloads.
type PatternScorer struct {
	indicators []string
	boost      float64
}

// NewPatternScorer creates a PatternScorer with the default indicator
// list and boost.
func NewPatternScorer() *PatternScorer {
	return &PatternScorer{indicators: defaultIndicators, boost: llmBoost}
}

// NewPatternScorerWith creates a PatternScorer with custom indicators
// and boost.
func NewPatternScorerWith(indicators []string, boost float64) *PatternScorer {
	return &PatternScorer{indicators: indicators, boost: boost}
}

// Score returns the boost for names containing any indicator, 1.0
// otherwise.
func (s *PatternScorer) Score(containerName string) float64 {
	name := strings.ToLower(containerName)
	for _, ind := range s.indicators {
		if strings.Contains(name, ind) {
			return s.boost
		}
	}
	return 1.0
}

// Matches reports whether the name contains any indicator. Used for
// the likelihood score metric.
func (s *PatternScorer) Matches(containerName string) bool {
	return s.Score(containerName) != 1.0
}

// NopScorer returns 1.0 for every name, disabling pattern weighting.
type NopScorer struct{}

// Score implements Scorer.
func (NopScorer) Score(string) float64 { return 1.0 }
