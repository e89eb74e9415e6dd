package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aigen_library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aigen_library_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Catalog database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_db_queries_total",
			Help: "Total number of catalog database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aigen_library_db_query_duration_seconds",
			Help:    "Catalog database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aigen_library_db_connections_open",
			Help: "Number of open catalog database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aigen_library_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Import run metrics
var (
	ImportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_import_runs_total",
			Help: "Total number of import runs by outcome",
		},
		[]string{"outcome"}, // "complete", "cancelled", "folder_not_found", "system_error"
	)

	ImportRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aigen_library_import_run_duration_seconds",
			Help:    "Import run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800},
		},
	)

	ImportFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_import_files_total",
			Help: "Total number of files processed by import runs, by status",
		},
		[]string{"status"}, // "success", "failed", "requires_manual_entry", "skipped"
	)

	ImportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_import_errors_total",
			Help: "Total number of import errors by error type",
		},
		[]string{"type"},
	)

	ImportFileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aigen_library_import_file_duration_seconds",
			Help:    "Per-file import processing time in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ImportIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aigen_library_import_running",
			Help: "Number of import runs currently in progress",
		},
	)

	ImportLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aigen_library_import_last_run_timestamp",
			Help: "Unix timestamp of the last completed import run",
		},
	)
)

// Metadata extraction metrics
var (
	PNGChunksRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_png_chunks_read_total",
			Help: "Total number of PNG chunks read, by kind",
		},
		[]string{"kind"}, // "text", "other"
	)

	PNGMalformedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aigen_library_png_malformed_total",
			Help: "Total number of PNG streams that ended before a terminal chunk or failed validation",
		},
	)

	MetadataExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_metadata_extractions_total",
			Help: "Total number of metadata extractions by ecosystem and result",
		},
		[]string{"ecosystem", "result"},
	)

	MetadataExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aigen_library_metadata_extraction_duration_seconds",
			Help:    "Metadata extraction duration in seconds by container format",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"format"},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"status"}, // "success", "error", "error_decode", "error_encode"
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aigen_library_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"decoder"}, // "native", "vips"
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aigen_library_thumbnail_cache_hits_total",
			Help: "Total number of on-disk thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aigen_library_thumbnail_cache_misses_total",
			Help: "Total number of on-disk thumbnail cache misses",
		},
	)

	ThumbnailCacheInvalid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aigen_library_thumbnail_cache_invalid_total",
			Help: "Total number of unreadable cached thumbnails that were regenerated or removed",
		},
	)

	ThumbnailMemoryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aigen_library_thumbnail_memory_cache_hits_total",
			Help: "Total number of in-memory thumbnail cache hits",
		},
	)

	ThumbnailMemoryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aigen_library_thumbnail_memory_cache_misses_total",
			Help: "Total number of in-memory thumbnail cache misses",
		},
	)

	ThumbnailMemoryCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aigen_library_thumbnail_memory_cache_evictions_total",
			Help: "Total number of in-memory thumbnail cache evictions",
		},
	)

	ThumbnailMemoryCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aigen_library_thumbnail_memory_cache_entries",
			Help: "Number of thumbnails held in memory",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after ESTALE",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigen_library_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aigen_library_filesystem_retry_duration_seconds",
			Help:    "Duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Library metrics, refreshed by the Collector
var (
	LibraryImagesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aigen_library_images_total",
			Help: "Number of catalogued images by import status",
		},
		[]string{"status"},
	)

	LibraryImagesByEcosystem = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aigen_library_images_by_ecosystem",
			Help: "Number of catalogued images by generator ecosystem",
		},
		[]string{"ecosystem"},
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aigen_library_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aigen_library_memory_paused",
			Help: "Whether import workers are paused for memory pressure (1 = paused)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aigen_library_memory_pauses_total",
			Help: "Number of times import workers were paused for memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aigen_library_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
