package config

import (
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
)

// Config holds all agent configuration values.
type Config struct {
	// ExporterPort is the port serving /metrics, /healthz, /readyz.
	ExporterPort int
	// CollectionInterval is the attribution cycle cadence.
	CollectionInterval time.Duration
	// SyncTimeout bounds the wait for the first poll of every source.
	SyncTimeout time.Duration

	// Per-source query timeouts. A timeout degrades only that source's
	// contribution for the cycle.
	GPUQueryTimeout    time.Duration
	DockerQueryTimeout time.Duration

	// SmoothingAlpha is the EWMA constant for historical profiles.
	SmoothingAlpha float64
	// ProfileEvictionCycles is the number of cycles a container may go
	// unseen before its profile is dropped.
	ProfileEvictionCycles uint64

	// ConfidenceBase is the confidence assigned with exactly one
	// attribution candidate; ConfidenceDecay is the multiplier applied
	// per additional candidate.
	ConfidenceBase  float64
	ConfidenceDecay float64

	// MinUnknownBytes is the unknown-memory threshold above which the
	// inference-active signal is raised.
	MinUnknownBytes uint64

	// ProcRoot is the proc filesystem mount used for pid-to-container
	// resolution ("/host/proc" when the agent itself runs in a container).
	ProcRoot string
	// DockerHost overrides the Docker daemon address; empty means the
	// client's standard environment resolution.
	DockerHost string

	// StatsEnabled toggles the per-container Docker stats collector.
	StatsEnabled bool
	// StatsInterval is the stats poll cadence, defaulting to the
	// collection interval.
	StatsInterval time.Duration

	// OllamaEnabled toggles the inference runtime prober.
	OllamaEnabled bool
	OllamaURL     string

	// DebugEndpoints enables pprof and /debug handlers.
	DebugEndpoints bool

	AgentVersion string
}

// Load reads configuration from environment variables and returns a
// Config with defaults applied for any unset values.
func Load() Config {
	cfg := Config{
		ExporterPort:       parseInt("AURA_EXPORTER_PORT", 9201),
		CollectionInterval: parseDuration("AURA_COLLECTION_INTERVAL", 10*time.Second),
		SyncTimeout:        parseDuration("AURA_SYNC_TIMEOUT", 30*time.Second),

		GPUQueryTimeout:    parseDuration("AURA_GPU_QUERY_TIMEOUT", 5*time.Second),
		DockerQueryTimeout: parseDuration("AURA_DOCKER_QUERY_TIMEOUT", 5*time.Second),

		SmoothingAlpha:        parseFloat("AURA_SMOOTHING_ALPHA", 0.3),
		ProfileEvictionCycles: parseUint("AURA_PROFILE_EVICTION_CYCLES", 60),

		ConfidenceBase:  parseFloat("AURA_CONFIDENCE_BASE", 0.9),
		ConfidenceDecay: parseFloat("AURA_CONFIDENCE_DECAY", 0.5),

		MinUnknownBytes: parseBytes("AURA_MIN_UNKNOWN_BYTES", 100*1024*1024),

		ProcRoot:   envOrDefault("AURA_PROC_ROOT", "/proc"),
		DockerHost: os.Getenv("AURA_DOCKER_HOST"),

		StatsEnabled: parseBool("AURA_STATS_ENABLED", true),

		OllamaEnabled: parseBool("AURA_OLLAMA_ENABLED", true),
		OllamaURL:     envOrDefault("AURA_OLLAMA_URL", "http://127.0.0.1:11434"),

		DebugEndpoints: parseBool("AURA_DEBUG_ENDPOINTS", false),

		AgentVersion: envOrDefault("AURA_AGENT_VERSION", "dev"),
	}

	cfg.StatsInterval = parseDuration("AURA_STATS_INTERVAL", cfg.CollectionInterval)

	return cfg
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parseDuration tries time.ParseDuration first, then falls back to
// treating the value as integer seconds.
func parseDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(v)
	if err == nil {
		return d
	}

	secs, err := strconv.Atoi(v)
	if err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}

func parseBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func parseInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// parseUint rejects negative and non-numeric values rather than
// letting them wrap into a huge count.
func parseUint(key string, defaultVal uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}

// parseBytes accepts either a plain byte count or a human-readable
// size such as "100MiB" or "1g".
func parseBytes(key string, defaultVal uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := units.RAMInBytes(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return uint64(n)
}

func parseFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
