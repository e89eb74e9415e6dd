// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [LoadConfig]. A .env
// file in the working directory is loaded first by [LoadDotEnv]; variables
// already present in the environment take precedence.
//
//   - LIBRARY_DIR: Folder imported by default (default: /library)
//   - CACHE_DIR: Cache root; thumbnails live in CACHE_DIR/thumbnails (default: /cache)
//   - DATABASE_DIR: Catalog directory; the database is library.db (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - IMPORT_RECURSIVE: Descend into subfolders (default: true)
//   - IMPORT_WORKERS: Worker pool size (default: 2 per CPU, capped)
//   - THUMBNAIL_SIZE: Longest thumbnail edge in pixels (default: 256)
//   - THUMBNAIL_MEMORY_ENTRIES: In-memory thumbnail LRU size (default: 512)
//   - USE_VIPS: Decode thumbnails with libvips (default: false)
//   - VALIDATE_CRC: Reject PNG chunks with a bad CRC (default: false)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
