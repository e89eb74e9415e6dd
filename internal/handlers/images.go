package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"aigen-library/internal/catalog"
	"aigen-library/internal/importer"
	"aigen-library/internal/thumbnail"

	"github.com/gorilla/mux"
)

func imageID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// ListImages handles GET /api/images.
func (h *Handlers) ListImages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := catalog.ListOptions{
		Status:    importer.Status(q.Get("status")),
		Ecosystem: q.Get("ecosystem"),
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}

	images, err := h.catalog.List(r.Context(), opts)
	if err != nil {
		log.Error("List images failed: %v", err)
		writeJSONError(w, "failed to list images", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, images)
}

// GetImage handles GET /api/images/{id}.
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(r)
	if !ok {
		writeJSONError(w, "invalid image id", http.StatusBadRequest)
		return
	}

	img, err := h.catalog.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("Get image %d failed: %v", id, err)
		writeJSONError(w, "failed to load image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, img)
}

// DeleteImage handles DELETE /api/images/{id}. The source file is not
// touched.
func (h *Handlers) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(r)
	if !ok {
		writeJSONError(w, "invalid image id", http.StatusBadRequest)
		return
	}

	err := h.catalog.Delete(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("Delete image %d failed: %v", id, err)
		writeJSONError(w, "failed to delete image", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetThumbnail handles GET /api/images/{id}/thumbnail.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(r)
	if !ok {
		http.Error(w, "Invalid image id", http.StatusBadRequest)
		return
	}

	img, err := h.catalog.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("Thumbnail: lookup of image %d failed: %v", id, err)
		http.Error(w, "Failed to load image", http.StatusInternalServerError)
		return
	}

	data, err := h.thumbs.Bytes(r.Context(), img.Path)
	if errors.Is(err, thumbnail.ErrNotFound) {
		http.Error(w, "Source file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("Thumbnail: generation failed for %s: %v", img.Path, err)
		http.Error(w, "Failed to generate thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// StatsResponse is returned by GET /api/stats.
type StatsResponse struct {
	TotalImages     int            `json:"totalImages"`
	ByStatus        map[string]int `json:"byStatus"`
	ByEcosystem     map[string]int `json:"byEcosystem"`
	ThumbnailCount  int            `json:"thumbnailCount"`
	ThumbnailBytes  int64          `json:"thumbnailBytes"`
	MemoryCacheSize int            `json:"memoryCacheSize"`
}

// GetStats handles GET /api/stats.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		log.Error("Stats failed: %v", err)
		writeJSONError(w, "failed to load stats", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		TotalImages: stats.TotalImages,
		ByStatus:    stats.ByStatus,
		ByEcosystem: stats.ByEcosystem,
	}
	if h.thumbs != nil {
		if count, size, err := h.thumbs.Stats(); err == nil {
			resp.ThumbnailCount = count
			resp.ThumbnailBytes = size
		}
		resp.MemoryCacheSize = h.thumbs.Memory().Len()
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}
