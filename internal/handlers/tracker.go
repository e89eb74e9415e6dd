package handlers

import (
	"sync"

	"aigen-library/internal/importer"
)

// ImportTracker keeps the latest progress report and the last finished run
// for the status endpoint.
type ImportTracker struct {
	mu       sync.RWMutex
	progress importer.Progress
	last     *importer.RunResult
}

// NewImportTracker creates an empty tracker.
func NewImportTracker() *ImportTracker {
	return &ImportTracker{}
}

// Update records a progress report. Pass it to importer.WithProgress.
func (t *ImportTracker) Update(p importer.Progress) {
	t.mu.Lock()
	t.progress = p
	t.mu.Unlock()
}

// Finish records a completed run.
func (t *ImportTracker) Finish(res *importer.RunResult) {
	t.mu.Lock()
	t.last = res
	t.mu.Unlock()
}

// Snapshot returns the current progress and the last finished run, which
// is nil before the first run completes.
func (t *ImportTracker) Snapshot() (importer.Progress, *importer.RunResult) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress, t.last
}
