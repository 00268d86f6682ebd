package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jenastar/aura-agent/internal/agent"
	"github.com/jenastar/aura-agent/internal/attribution"
	"github.com/jenastar/aura-agent/internal/collector"
	"github.com/jenastar/aura-agent/internal/collector/docker"
	"github.com/jenastar/aura-agent/internal/collector/gpu"
	"github.com/jenastar/aura-agent/internal/collector/inference"
	"github.com/jenastar/aura-agent/internal/collector/stats"
	"github.com/jenastar/aura-agent/internal/config"
	"github.com/jenastar/aura-agent/internal/errors"
	"github.com/jenastar/aura-agent/internal/exporter"
	"github.com/jenastar/aura-agent/internal/health"
	"github.com/jenastar/aura-agent/internal/observability"
	"github.com/jenastar/aura-agent/internal/procmap"
	"github.com/jenastar/aura-agent/internal/snapshot"
)

func main() {
	// 1. Load and validate config.
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// 2. Create context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown signal received", "signal", sig)
		cancel()
	}()

	slog.Info("aura-agent starting",
		"version", cfg.AgentVersion,
		"port", cfg.ExporterPort,
		"collection_interval", cfg.CollectionInterval,
	)

	// 3. Create shared infrastructure.
	metrics := observability.NewMetrics()
	errCollector := errors.NewCollector(errors.RealClock{})

	// 4. Build the attribution machinery.
	scorer := attribution.NewPatternScorer()
	profiles := attribution.NewProfileStore(cfg.SmoothingAlpha)
	distributor := attribution.NewDistributor(scorer, profiles, attribution.ConfidenceModel{
		Base:  cfg.ConfidenceBase,
		Decay: cfg.ConfidenceDecay,
	})
	resolver := procmap.NewResolver(cfg.ProcRoot, slog.Default())

	// 5. Register collectors.
	registry := collector.NewRegistry()

	gpuCollector := gpu.NewCollector(gpu.NewNVMLClient(),
		cfg.CollectionInterval, cfg.GPUQueryTimeout, errCollector, metrics)
	registry.Register(gpuCollector)

	dockerAPI, err := docker.NewDockerClient(cfg.DockerHost)
	if err != nil {
		slog.Error("failed to create docker client", "error", err)
		os.Exit(1)
	}
	dockerCollector := docker.NewCollector(dockerAPI,
		cfg.CollectionInterval, cfg.DockerQueryTimeout, errCollector, metrics)
	registry.Register(dockerCollector)

	var statsCollector *stats.Collector
	if cfg.StatsEnabled {
		statsAPI, err := stats.NewDockerStatsClient(cfg.DockerHost)
		if err != nil {
			slog.Error("failed to create docker stats client", "error", err)
			os.Exit(1)
		}
		statsCollector = stats.NewCollector(statsAPI, dockerCollector,
			cfg.StatsInterval, cfg.DockerQueryTimeout, errCollector, metrics)
		registry.Register(statsCollector)
	}

	var inferenceCollector *inference.Collector
	if cfg.OllamaEnabled {
		probeAPI, err := inference.NewOllamaClient(cfg.OllamaURL, &http.Client{Timeout: 5 * time.Second})
		if err != nil {
			slog.Error("invalid ollama url", "error", err)
			os.Exit(1)
		}
		inferenceCollector = inference.NewCollector(probeAPI,
			cfg.CollectionInterval, errCollector, metrics)
		registry.Register(inferenceCollector)
	}

	// 6. Build the cycle builder and agent. Optional collectors pass
	// through as typed-nil-safe interface values.
	var statsSource snapshot.StatsSource
	if statsCollector != nil {
		statsSource = statsCollector
	}
	var inferenceSource snapshot.InferenceSource
	if inferenceCollector != nil {
		inferenceSource = inferenceCollector
	}
	builder := snapshot.NewBuilder(
		gpuCollector, dockerCollector, statsSource, inferenceSource,
		resolver, distributor, errCollector, metrics,
		cfg.MinUnknownBytes, cfg.ProfileEvictionCycles, cfg.AgentVersion,
	)
	ag := agent.NewAgent(&cfg, registry, builder, errCollector, metrics)

	// 7. Start the HTTP server: attribution exposition merged with
	// agent self-monitoring.
	dataReg := prometheus.NewRegistry()
	dataReg.MustRegister(exporter.New(ag))
	healthSrv := health.NewServer(cfg.ExporterPort, dataReg, metrics.Registry,
		ag, ag, errCollector, profiles, cfg.DebugEndpoints)
	if err := healthSrv.Start(); err != nil {
		slog.Error("failed to start http server", "error", err)
		os.Exit(1)
	}

	// 8. Start memory pressure monitor.
	memMon := agent.NewMemoryPressureMonitor(0.8, func() {
		metrics.MemoryPressureTotal.Inc()
		runtime.GC()
	}, 30*time.Second, profiles.Len, nil)
	memMon.Start()

	// 9. Run agent (blocks until the context is canceled).
	if err := ag.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("agent exited with error", "error", err)
	}

	// 10. Graceful shutdown.
	memMon.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("aura-agent stopped")
}
