package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aigen-library/internal/catalog"
	"aigen-library/internal/filesystem"
	"aigen-library/internal/handlers"
	"aigen-library/internal/importer"
	"aigen-library/internal/logging"
	"aigen-library/internal/memory"
	"aigen-library/internal/metadata"
	"aigen-library/internal/metrics"
	"aigen-library/internal/middleware"
	"aigen-library/internal/startup"
	"aigen-library/internal/thumbnail"

	"github.com/gorilla/mux"
)

const metricsInterval = time.Minute

func main() {
	startTime := time.Now()

	startup.LoadDotEnv()

	// Before any large allocation so the GC sees the limit from the start.
	memConfig := memory.ConfigureFromEnv()
	if memConfig.Configured {
		logging.Info("Go memory limit %d bytes (source: %s)", memConfig.GoMemLimit, memConfig.Source)
	}

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	// Cancelled on shutdown so background imports stop enqueuing work.
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	dbStart := time.Now()
	cat, err := catalog.New(appCtx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize catalog: %v", err)
	}
	defer cat.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	if config.UseVips {
		if err := thumbnail.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using native decoders: %v", err)
		}
	}
	startup.LogThumbnailInit(config.ThumbnailDir, thumbnail.IsVipsAvailable())

	thumbs, err := thumbnail.New(config.ThumbnailDir,
		thumbnail.WithMaxEdge(config.ThumbnailSize),
		thumbnail.WithMemoryEntries(config.ThumbnailMemoryEntries),
		thumbnail.WithVips(thumbnail.IsVipsAvailable()),
	)
	if err != nil {
		logging.Fatal("Failed to initialize thumbnail cache: %v", err)
	}
	if removed, err := thumbs.CleanupInvalid(); err != nil {
		logging.Warn("Thumbnail cache cleanup failed: %v", err)
	} else if removed > 0 {
		logging.Info("Removed %d invalid thumbnail artifacts", removed)
	}

	extractor := metadata.NewExtractor(metadata.WithCRCValidation(config.ValidateCRC))

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	tracker := handlers.NewImportTracker()
	imp := importer.New(extractor, thumbs,
		importer.WithSink(catalog.NewSink(cat)),
		importer.WithKnownPaths(cat.KnownPaths(appCtx)),
		importer.WithWorkers(config.ImportWorkers),
		importer.WithProgress(tracker.Update),
		importer.WithGate(monitor),
	)

	collector := metrics.NewCollector(cat, metricsInterval)
	collector.Start()

	h := handlers.New(appCtx, cat, imp, thumbs, tracker, config)

	router := mux.NewRouter()
	h.Register(router)
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	var handler http.Handler = router
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, cat)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleShutdown(srv, metricsSrv, h, cancelApp, collector, monitor)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal("Server error: %v", err)
	}
	<-done
}

// newMetricsServer serves /metrics on its own port and refreshes the
// database gauges on each scrape.
func newMetricsServer(port string, cat *catalog.Catalog) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", handlers.MetricsHandler(cat.UpdateDBMetrics))
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, h *handlers.Handlers, cancelApp context.CancelFunc, collector *metrics.Collector, monitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	cancelApp()
	h.Wait()
	startup.LogShutdownStepComplete("Import runs stopped")

	collector.Stop()
	monitor.Stop()
	startup.LogShutdownStepComplete("Metrics collector and memory monitor stopped")

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	thumbnail.ShutdownVips()
	startup.LogShutdownStepComplete("Thumbnail decoder released")

	startup.LogShutdownComplete()
}
