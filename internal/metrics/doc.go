// Package metrics provides Prometheus instrumentation for the image library.
//
// All metrics are registered with promauto at package init and prefixed with
// "aigen_library_". InitializeMetrics pre-populates every known label
// combination so dashboards see zero values from the first scrape.
//
// # Metric Categories
//
// ## Import Metrics
//
//   - ImportRunsTotal: runs by outcome (complete, cancelled, folder_not_found, system_error)
//   - ImportRunDuration: wall-clock duration of a run
//   - ImportFilesTotal: processed files by status (success, failed, requires_manual_entry, skipped)
//   - ImportErrorsTotal: itemized errors by error type
//   - ImportFileDuration: per-file processing time
//   - ImportIsRunning / ImportLastRunTimestamp
//
// ## Metadata Metrics
//
//   - PNGChunksRead: chunks read by kind (text, other)
//   - PNGMalformedTotal: streams that stopped before IEND or failed CRC validation
//   - MetadataExtractionsTotal: extractions by ecosystem and result
//   - MetadataExtractionDuration: extraction time by container format
//
// ## Thumbnail Metrics
//
//   - ThumbnailGenerationsTotal / ThumbnailGenerationDuration
//   - ThumbnailCacheHits / ThumbnailCacheMisses / ThumbnailCacheInvalid (disk)
//   - ThumbnailMemoryCache{Hits,Misses,Evictions,Entries} (in-memory LRU)
//
// ## Catalog and Filesystem Metrics
//
//   - DBQueryTotal / DBQueryDuration / DBConnectionsOpen / DBSizeBytes
//   - Filesystem retry counters, recorded through NewFilesystemObserver
//   - LibraryImagesTotal / LibraryImagesByEcosystem, refreshed by Collector
//
// # Usage
//
//	metrics.InitializeMetrics()
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//	collector := metrics.NewCollector(catalogDB, time.Minute)
//	collector.Start()
//	defer collector.Stop()
package metrics
