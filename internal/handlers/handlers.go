package handlers

import (
	"context"
	"sync"
	"time"

	"aigen-library/internal/catalog"
	"aigen-library/internal/importer"
	"aigen-library/internal/logging"
	"aigen-library/internal/startup"
	"aigen-library/internal/thumbnail"
)

var log = logging.Component("http")

// Handlers serves the library API.
type Handlers struct {
	catalog    *catalog.Catalog
	importer   *importer.Importer
	thumbs     *thumbnail.Cache
	tracker    *ImportTracker
	libraryDir string
	recursive  bool
	startTime  time.Time

	// baseCtx bounds imports started in the background; cancelling it
	// stops them at shutdown.
	baseCtx context.Context
	runs    sync.WaitGroup
}

// New creates the handlers. The importer should report progress to tracker.
func New(ctx context.Context, cat *catalog.Catalog, imp *importer.Importer, thumbs *thumbnail.Cache, tracker *ImportTracker, config *startup.Config) *Handlers {
	if tracker == nil {
		tracker = NewImportTracker()
	}
	return &Handlers{
		catalog:    cat,
		importer:   imp,
		thumbs:     thumbs,
		tracker:    tracker,
		libraryDir: config.LibraryDir,
		recursive:  config.ImportRecursive,
		startTime:  time.Now(),
		baseCtx:    ctx,
	}
}

// Wait blocks until background imports have returned.
func (h *Handlers) Wait() {
	h.runs.Wait()
}
