package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"aigen-library/internal/importer"
)

var errOutsideLibrary = errors.New("path is outside the library")

type importRequest struct {
	// Path is relative to the library root; empty means the root itself.
	Path      string `json:"path"`
	Recursive *bool  `json:"recursive,omitempty"`
}

// ImportStatusResponse is returned by GET /api/import/status.
type ImportStatusResponse struct {
	Running bool                `json:"running"`
	Phase   string              `json:"phase"`
	Done    int                 `json:"done"`
	Total   int                 `json:"total"`
	Current string              `json:"current,omitempty"`
	Workers int                 `json:"workers"`
	LastRun *importer.RunResult `json:"lastRun,omitempty"`
}

// resolveImportRoot maps a request path onto the library directory.
func (h *Handlers) resolveImportRoot(p string) (string, error) {
	base, err := filepath.Abs(h.libraryDir)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		p, err = filepath.Rel(base, filepath.Clean(p))
		if err != nil {
			return "", errOutsideLibrary
		}
	}
	root := filepath.Join(base, filepath.FromSlash(p))
	if root != base && !strings.HasPrefix(root, base+string(filepath.Separator)) {
		return "", errOutsideLibrary
	}
	return root, nil
}

// StartImport handles POST /api/import. The run proceeds in the background
// and the call returns 202; with ?wait=true it blocks and returns the
// RunResult.
func (h *Handlers) StartImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	root, err := h.resolveImportRoot(req.Path)
	if err != nil {
		writeJSONError(w, "invalid path", http.StatusBadRequest)
		return
	}

	recursive := h.recursive
	if req.Recursive != nil {
		recursive = *req.Recursive
	}

	if h.importer.IsRunning() {
		writeJSONError(w, "an import is already running", http.StatusConflict)
		return
	}

	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		writeJSONStatusCode(w, http.StatusNotFound, map[string]string{
			"error":     "folder not found",
			"errorType": string(importer.ErrFolderNotFound),
		})
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		res := h.runImport(r, root, recursive)
		status := http.StatusOK
		switch {
		case hasErrorType(res, importer.ErrFolderNotFound):
			status = http.StatusNotFound
		case hasErrorType(res, importer.ErrSystemError) && res.Total == 0:
			status = http.StatusConflict
		}
		writeJSONStatusCode(w, status, res)
		return
	}

	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		h.runImport(nil, root, recursive)
	}()

	log.Info("Import of %s started (recursive=%v)", root, recursive)
	writeJSONStatusCode(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"root":   root,
	})
}

// runImport runs against the request context when r is set, otherwise
// against the server's base context.
func (h *Handlers) runImport(r *http.Request, root string, recursive bool) *importer.RunResult {
	ctx := h.baseCtx
	if r != nil {
		ctx = r.Context()
	}
	res := h.importer.Run(ctx, root, recursive)
	h.tracker.Finish(res)
	return res
}

func hasErrorType(res *importer.RunResult, t importer.ErrorType) bool {
	for _, e := range res.Errors {
		if e.ErrorType == t {
			return true
		}
	}
	return false
}

// ImportStatus handles GET /api/import/status.
func (h *Handlers) ImportStatus(w http.ResponseWriter, _ *http.Request) {
	progress, last := h.tracker.Snapshot()
	resp := ImportStatusResponse{
		Running: h.importer.IsRunning(),
		Phase:   h.importer.Phase().String(),
		Workers: h.importer.Workers(),
		LastRun: last,
	}
	if resp.Running {
		resp.Done = progress.Done
		resp.Total = progress.Total
		resp.Current = progress.Current
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, resp)
}
