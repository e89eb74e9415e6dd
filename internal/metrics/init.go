package metrics

// Label sets shared with the packages that record into these metrics.
var (
	ImportStatuses   = []string{"success", "failed", "requires_manual_entry", "skipped"}
	ImportRunResults = []string{"complete", "cancelled", "folder_not_found", "system_error"}
	ImportErrorTypes = []string{"FolderNotFound", "SystemError", "FileNotFound",
		"UnsupportedFormat", "MetadataExtraction", "ImportError", "Other"}
	Ecosystems = []string{"a1111", "invokeai", "novelai", "dream", "fooocus", "stableswarm", "exif", "unknown"}
	Volumes    = []string{"library", "cache", "database", "unknown"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, s := range ImportStatuses {
		ImportFilesTotal.WithLabelValues(s)
		LibraryImagesTotal.WithLabelValues(s)
	}
	for _, r := range ImportRunResults {
		ImportRunsTotal.WithLabelValues(r)
	}
	for _, t := range ImportErrorTypes {
		ImportErrorsTotal.WithLabelValues(t)
	}

	for _, eco := range Ecosystems {
		MetadataExtractionsTotal.WithLabelValues(eco, "success")
		MetadataExtractionsTotal.WithLabelValues(eco, "unresolved")
		LibraryImagesByEcosystem.WithLabelValues(eco)
	}
	for _, f := range []string{"png", "jpeg", "webp", "other"} {
		MetadataExtractionDuration.WithLabelValues(f)
	}
	for _, k := range []string{"text", "other"} {
		PNGChunksRead.WithLabelValues(k)
	}

	for _, s := range []string{"success", "error", "error_decode", "error_encode"} {
		ThumbnailGenerationsTotal.WithLabelValues(s)
	}
	for _, d := range []string{"native", "vips"} {
		ThumbnailGenerationDuration.WithLabelValues(d)
	}

	for _, op := range []string{"stat", "open", "rename"} {
		for _, vol := range Volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"initialize_schema", "add_image", "update_image", "get_image",
		"get_image_by_path", "has_path", "list_images", "delete_image", "stats", "begin_transaction", "commit", "rollback"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
	for _, f := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(f)
	}
}
