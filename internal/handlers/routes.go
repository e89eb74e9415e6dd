package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Register adds the API and probe routes to r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet).Name("health")
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead).Name("liveness")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet).Name("readiness")
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet).Name("version")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/import", h.StartImport).Methods(http.MethodPost).Name("import")
	api.HandleFunc("/import/status", h.ImportStatus).Methods(http.MethodGet).Name("import-status")
	api.HandleFunc("/images", h.ListImages).Methods(http.MethodGet).Name("images")
	api.HandleFunc("/images/{id:[0-9]+}", h.GetImage).Methods(http.MethodGet).Name("image")
	api.HandleFunc("/images/{id:[0-9]+}", h.DeleteImage).Methods(http.MethodDelete).Name("image-delete")
	api.HandleFunc("/images/{id:[0-9]+}/thumbnail", h.GetThumbnail).Methods(http.MethodGet).Name("thumbnail")
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet).Name("stats")
}
