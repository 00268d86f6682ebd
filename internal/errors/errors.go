package errors

import (
	"sort"
	"sync"
	"time"
)

// Code identifies an operator-visible failure condition.
type Code string

// Agent error codes. These surface on the debug endpoint and in the
// cycle snapshot's health block; none of them ever fails a scrape.
const (
	// ErrGPUUnavailable: the NVML interface could not be initialized
	// or queried at all. GPU-level data degrades for the cycle.
	ErrGPUUnavailable Code = "GPU_UNAVAILABLE"
	// ErrPartialDeviceFailure: one device's query failed while the
	// rest of the cycle proceeded.
	ErrPartialDeviceFailure Code = "PARTIAL_DEVICE_FAILURE"
	// ErrRegistryUnavailable: the Docker daemon could not be reached;
	// the cycle runs with an empty container list.
	ErrRegistryUnavailable Code = "REGISTRY_UNAVAILABLE"
	// ErrMapperFailed: a pid-to-container lookup failed; the process
	// is treated as a host process for the cycle.
	ErrMapperFailed Code = "MAPPER_FAILED"
	// ErrNegativeDelta: the known-process sum exceeded the device's
	// reported used memory and the delta was clamped to zero.
	ErrNegativeDelta Code = "NEGATIVE_DELTA"
	// ErrStatsFailed: the Docker stats read failed for a container.
	ErrStatsFailed Code = "STATS_FAILED"
	// ErrInferenceAPIFailed: the Ollama API probe failed.
	ErrInferenceAPIFailed Code = "INFERENCE_API_FAILED"
)

// defaultTTL is the auto-expiry window for errors not re-reported.
const defaultTTL = 5 * time.Minute

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock uses the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// AgentError is a typed agent error with code, component, and an
// optional wrapped cause.
type AgentError struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Component string `json:"component"`
	Timestamp int64  `json:"timestamp"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *AgentError) Error() string { return e.Message }

// Unwrap returns the wrapped cause for errors.Is/As compatibility.
func (e *AgentError) Unwrap() error { return e.Err }

type entry struct {
	err        AgentError
	lastReport time.Time
}

// Collector is a thread-safe store of active agent errors, keyed by
// Code+Component. Entries auto-expire when not re-reported within the
// TTL, so a recovered source drops off the health surface on its own.
type Collector struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]entry
}

// NewCollector creates a Collector with the given clock.
func NewCollector(clock Clock) *Collector {
	return &Collector{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

func key(code Code, component string) string {
	return string(code) + "|" + component
}

// Report stores or refreshes an error.
func (c *Collector) Report(err AgentError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(err.Code, err.Component)] = entry{
		err:        err,
		lastReport: c.clock.Now(),
	}
}

// Active returns all errors reported within the TTL window.
func (c *Collector) Active() []AgentError {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	out := make([]AgentError, 0, len(c.entries))
	for k, e := range c.entries {
		if now.Sub(e.lastReport) > defaultTTL {
			delete(c.entries, k)
			continue
		}
		out = append(out, e.err)
	}
	return out
}

// ActiveCodes returns a sorted, deduplicated list of active error codes.
func (c *Collector) ActiveCodes() []string {
	seen := make(map[string]struct{})
	for _, e := range c.Active() {
		seen[string(e.Code)] = struct{}{}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
