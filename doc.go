// Package main provides the HTTP server for the AI image library.
//
// The server imports folders of AI-generated images into a SQLite catalog.
// It recovers the generation parameters each tool embeds in its output,
// such as the prompt, sampler, seed and model, and serves cached
// thumbnails for the catalog.
//
// # Application Lifecycle
//
//  1. Configuration Loading: reads .env and environment variables, then
//     validates directories
//  2. Catalog Initialization: opens the SQLite database in WAL mode
//  3. Component Initialization:
//     - Thumbnail cache: disk artifacts plus an in-memory LRU, optionally
//     decoding through libvips
//     - Metadata extractor: PNG text chunks, EXIF and .txt sidecars
//     - Importer: bounded worker pool writing outcomes to the catalog
//     - Metrics collector: refreshes catalog gauges every minute
//  4. HTTP Server Setup: routes, then metrics, logging and gzip middleware
//  5. Graceful Shutdown: SIGINT/SIGTERM stops the server, cancels running
//     imports and waits for them to return partial results
//
// # HTTP Server
//
// The main server (default port 8080) exposes:
//
//   - POST /api/import: start an import of a library folder
//   - GET /api/import/status: progress and the last run summary
//   - GET /api/images, GET/DELETE /api/images/{id}
//   - GET /api/images/{id}/thumbnail: JPEG thumbnail
//   - GET /api/stats, /healthz, /livez, /readyz, /version
//
// The metrics server (default port 9090, optional) serves /metrics.
//
// # Environment Variables
//
//   - LIBRARY_DIR: root folder that imports are confined to
//   - CACHE_DIR: thumbnail cache location
//   - DATABASE_DIR: directory holding library.db
//   - PORT, METRICS_PORT, METRICS_ENABLED
//   - IMPORT_RECURSIVE: default for requests that do not say
//   - IMPORT_WORKERS: pins the worker pool size
//   - THUMBNAIL_SIZE, THUMBNAIL_MEMORY_ENTRIES, USE_VIPS
//   - VALIDATE_CRC: reject PNG chunks with bad checksums
//   - LOG_LEVEL: debug, info, warn or error
//   - MEMORY_LIMIT, MEMORY_RATIO: derive GOMEMLIMIT from a container limit
//     unless GOMEMLIMIT is set directly
//
// # Build Requirements
//
// CGO is required for SQLite and libvips.
//
// # Related Packages
//
//   - [aigen-library/internal/catalog]: SQLite catalog
//   - [aigen-library/internal/importer]: import runs
//   - [aigen-library/internal/metadata]: generation metadata extraction
//   - [aigen-library/internal/thumbnail]: thumbnail cache
//   - [aigen-library/internal/handlers]: HTTP request handlers
//   - [aigen-library/internal/startup]: configuration and startup logging
package main
