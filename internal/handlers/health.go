package handlers

import (
	"net/http"
	"runtime"
	"time"

	"aigen-library/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Importing bool   `json:"importing"`
	Phase     string `json:"phase"`
	LastRunID string `json:"lastRunId,omitempty"`
	LastRunAt string `json:"lastRunAt,omitempty"`
	Database  string `json:"database"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	TotalImages int `json:"totalImages"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        true,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Importing:    h.importer.IsRunning(),
		Phase:        h.importer.Phase().String(),
		Database:     "ok",
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if _, last := h.tracker.Snapshot(); last != nil {
		response.LastRunID = last.RunID
		response.LastRunAt = last.StartedAt.Format(time.RFC3339)
	}

	if err := h.catalog.Ping(r.Context()); err != nil {
		log.Warn("Health check: database unreachable: %v", err)
		response.Status = statusDegraded
		response.Ready = false
		response.Database = "unreachable"
	} else if stats, err := h.catalog.Stats(r.Context()); err == nil {
		response.TotalImages = stats.TotalImages
	}

	status := http.StatusOK
	if !response.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSONStatusCode(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// HEAD gets headers only
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only when the catalog is reachable
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Ping(r.Context()); err != nil {
		writeJSONStatusCode(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSONStatus(w, "ready")
}
