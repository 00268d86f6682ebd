package collector

import "context"

// Collector is the interface implemented by every data source the
// agent polls: GPU devices, the container registry, container stats,
// and the inference runtime prober.
type Collector interface {
	// Name returns the collector's name (e.g., "gpu", "docker").
	Name() string
	// Start launches the background polling goroutine.
	Start(ctx context.Context) error
	// WaitForSync blocks until the first poll completes.
	WaitForSync(ctx context.Context) error
	// Stop stops the collector and waits for its goroutine to exit.
	Stop()
}
