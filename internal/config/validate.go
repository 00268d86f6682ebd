package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that the Config contains valid values.
// Returns an error describing the first invalid field found.
func (c Config) Validate() error {
	if c.ExporterPort < 1 || c.ExporterPort > 65535 {
		return fmt.Errorf("config: ExporterPort must be 1-65535, got %d", c.ExporterPort)
	}

	if c.CollectionInterval < time.Second {
		return fmt.Errorf("config: CollectionInterval must be >= 1s, got %v", c.CollectionInterval)
	}

	if c.StatsInterval < time.Second {
		return fmt.Errorf("config: StatsInterval must be >= 1s, got %v", c.StatsInterval)
	}

	if c.GPUQueryTimeout <= 0 || c.DockerQueryTimeout <= 0 {
		return fmt.Errorf("config: query timeouts must be positive")
	}

	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1 {
		return fmt.Errorf("config: SmoothingAlpha must be in (0, 1], got %v", c.SmoothingAlpha)
	}

	if c.ProfileEvictionCycles < 1 {
		return fmt.Errorf("config: ProfileEvictionCycles must be >= 1, got %d", c.ProfileEvictionCycles)
	}

	if c.ConfidenceBase <= 0 || c.ConfidenceBase > 1 {
		return fmt.Errorf("config: ConfidenceBase must be in (0, 1], got %v", c.ConfidenceBase)
	}

	if c.ConfidenceDecay <= 0 || c.ConfidenceDecay >= 1 {
		return fmt.Errorf("config: ConfidenceDecay must be in (0, 1), got %v", c.ConfidenceDecay)
	}

	if c.OllamaEnabled && !strings.HasPrefix(c.OllamaURL, "http://") && !strings.HasPrefix(c.OllamaURL, "https://") {
		return fmt.Errorf("config: AURA_OLLAMA_URL must be an http(s) URL, got %q", c.OllamaURL)
	}

	return nil
}
