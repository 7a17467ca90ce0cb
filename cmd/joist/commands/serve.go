package commands

import (
	"context"
	"fmt"
	"net/http"

	//nolint:gosec // We are using pprof for debugging
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joistio/joist/internal/api"
	"github.com/joistio/joist/internal/config"
	"github.com/joistio/joist/internal/lifecycle"
	"github.com/joistio/joist/internal/logging"
	"github.com/joistio/joist/internal/metrics"
	"github.com/joistio/joist/internal/runner"
	"github.com/joistio/joist/internal/tracing"
	"github.com/joistio/joist/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	configPath           string
	apiPort              int
	minWorkerVersion     string
	descriptorCacheSize  int
	maxBundleParallelism int
	pprofEnabled         bool
	pprofPort            int
	tracingEnabled       bool
	tracingEndpoint      string
	tracingTLSCAPath     string
	tracingTLSInsecure   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Joist worker pool service",
	Long: `Start the Joist worker pool service which manages SDK workers and
provides an HTTP API for starting and stopping workers, listing jobs,
and scraping metrics.`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML configuration file. Flags override file values when set.")
	serveCmd.Flags().IntVar(&apiPort, "api-port", config.DefaultAPIPort, "Port the API server listens on")
	serveCmd.Flags().StringVar(&minWorkerVersion, "min-worker-version", "", "Minimum SDK version a worker may report (e.g. '0.3.0'). Empty disables the check.")
	serveCmd.Flags().IntVar(&descriptorCacheSize, "descriptor-cache-size", config.DefaultDescriptorCacheSize, "Number of bundle descriptors each worker caches")
	serveCmd.Flags().IntVar(&maxBundleParallelism, "max-bundle-parallelism", config.DefaultMaxBundleParallelism, "Maximum concurrent bundles per stage in the direct runner")
	serveCmd.Flags().BoolVar(&pprofEnabled, "pprof-enabled", false, "Enable pprof profiling server (default: false)")
	serveCmd.Flags().IntVar(&pprofPort, "pprof-port", 9999, "Port the pprof server listens on (default: 9999)")
	serveCmd.Flags().BoolVar(&tracingEnabled, "tracing-enabled", false, "Enable OpenTelemetry tracing (default: false)")
	serveCmd.Flags().StringVar(&tracingEndpoint, "tracing-endpoint", "", "OTLP gRPC endpoint for traces (e.g., collector:4317)")
	serveCmd.Flags().StringVar(&tracingTLSCAPath, "tracing-tls-ca", "", "Path to CA certificate for TLS verification (optional)")
	serveCmd.Flags().BoolVar(&tracingTLSInsecure, "tracing-tls-insecure", false, "Skip TLS certificate verification (insecure, use only for testing)")
}

func runServe(cmd *cobra.Command, args []string) {
	// Setup logging before anything else so config errors are readable
	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("serve")

	// Load configuration, file first, flags override
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		HandleError(err, "Configuration error")
	}
	if err := cfg.Validate(); err != nil {
		HandleError(err, "Configuration error")
	}

	logger.Info("Starting Joist v%s", Version)
	logger.Debug("Configuration loaded: APIPort=%d", cfg.APIPort)

	manager := lifecycle.NewManager()

	// Initialize tracing provider
	tracingCfg := tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		TLSCAPath:   cfg.TracingTLSCAPath,
		TLSInsecure: tracingTLSInsecure,
	}
	tracingProvider, err := tracing.NewTracingProvider(tracingCfg)
	if err != nil {
		logger.Warn("Failed to initialize tracing (continuing without tracing): %v", err)
		tracingProvider = nil
	}

	// Register tracing provider (no dependencies)
	if tracingProvider != nil {
		if err := manager.Register(tracingProvider); err != nil {
			HandleError(err, "Tracing registration error")
		}
	}

	// Start pprof server if enabled
	if pprofEnabled {
		go func() {
			pprofAddr := fmt.Sprintf(":%d", pprofPort)
			logger.Info("Starting pprof server on %s", pprofAddr)
			if err := http.ListenAndServe(pprofAddr, nil); err != nil { //nolint:gosec // We are using pprof for debugging
				logger.Error("pprof server failed: %v", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	poolMetrics := metrics.NewWorkerMetrics(registry, "pool")

	pool, err := worker.NewWorkerPool(worker.PoolConfig{
		MinSDKVersion:       cfg.MinWorkerVersion,
		DescriptorCacheSize: cfg.DescriptorCacheSize,
	}, poolMetrics)
	if err != nil {
		HandleError(err, "Worker pool initialization error")
	}
	if err := manager.Register(pool); err != nil {
		HandleError(err, "Worker pool registration error")
	}

	jobs := runner.NewJobStore()

	apiComponent := api.New(cfg.APIPort, pool, jobs, registry)
	if err := manager.Register(apiComponent, pool); err != nil {
		HandleError(err, "API server registration error")
	}

	logger.Info("All components registered with dependencies")
	ctx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(ctx); err != nil {
		HandleError(err, "Startup error")
	}

	logger.Info("Application started successfully")
	logger.Info("Worker pool API listening on port %d", apiComponent.GetPort())

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutdown signal received, gracefully shutting down...")
	cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}

	logger.Info("Shutdown complete")
}

// loadServeConfig builds the effective configuration. When --config is set
// the file is loaded first and any flag the user set on the command line
// overrides the file value.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	defaultLevel, _, err := parseLogLevelFlags(logLevelFlags)
	if err != nil {
		return nil, err
	}

	if configPath == "" {
		return config.LoadConfig(
			apiPort,
			defaultLevel,
			minWorkerVersion,
			descriptorCacheSize,
			maxBundleParallelism,
			tracingEnabled,
			tracingEndpoint,
			tracingTLSCAPath,
		), nil
	}

	// Seed a default config file if the requested one does not exist
	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		if err := config.WriteConfigFile(configPath, config.DefaultFileConfig()); err != nil {
			return nil, err
		}
	}

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = defaultLevel

	if cmd.Flags().Changed("api-port") {
		cfg.APIPort = apiPort
	}
	if cmd.Flags().Changed("min-worker-version") {
		cfg.MinWorkerVersion = minWorkerVersion
	}
	if cmd.Flags().Changed("descriptor-cache-size") {
		cfg.DescriptorCacheSize = descriptorCacheSize
	}
	if cmd.Flags().Changed("max-bundle-parallelism") {
		cfg.MaxBundleParallelism = maxBundleParallelism
	}
	if cmd.Flags().Changed("tracing-enabled") {
		cfg.TracingEnabled = tracingEnabled
	}
	if cmd.Flags().Changed("tracing-endpoint") {
		cfg.TracingEndpoint = tracingEndpoint
	}
	if cmd.Flags().Changed("tracing-tls-ca") {
		cfg.TracingTLSCAPath = tracingTLSCAPath
	}
	return cfg, nil
}
