package importer

import (
	"time"

	"aigen-library/internal/metadata"
)

// Status is the final classification of one imported file.
type Status string

const (
	StatusSuccess             Status = "success"
	StatusFailed              Status = "failed"
	StatusRequiresManualEntry Status = "requires_manual_entry"
)

// Phase is the state of an import run.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseExtracting
	PhaseAggregating
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseExtracting:
		return "extracting"
	case PhaseAggregating:
		return "aggregating"
	case PhaseComplete:
		return "complete"
	default:
		return "idle"
	}
}

// Outcome describes one processed file. It is built by a worker and not
// modified afterwards.
type Outcome struct {
	SourcePath    string             `json:"sourcePath"`
	RelativePath  string             `json:"relativePath"`
	FileName      string             `json:"fileName"`
	FileSize      int64              `json:"fileSize"`
	CreatedAt     time.Time          `json:"createdAt"`
	ModifiedAt    time.Time          `json:"modifiedAt"`
	Metadata      metadata.Metadata  `json:"metadata"`
	Ecosystem     metadata.Ecosystem `json:"ecosystem"`
	Reason        metadata.Reason    `json:"reason,omitempty"`
	FailureReason string             `json:"failureReason,omitempty"`
	ThumbnailPath string             `json:"thumbnailPath,omitempty"`
	Status        Status             `json:"status"`
}

// RunResult summarizes an import run.
type RunResult struct {
	RunID         string         `json:"runId"`
	Root          string         `json:"root"`
	Recursive     bool           `json:"recursive"`
	Total         int            `json:"total"`
	SuccessCount  int            `json:"successCount"`
	FailureCount  int            `json:"failureCount"`
	ManualCount   int            `json:"requiresManualEntryCount"`
	Skipped       int            `json:"skipped"`
	Errors        []*ImportError `json:"errors"`
	ImportedPaths []string       `json:"importedPaths"`
	StartedAt     time.Time      `json:"startedAt"`
	Duration      time.Duration  `json:"duration"`
	Cancelled     bool           `json:"cancelled"`
}

// Processed is the number of candidates that produced an outcome. It is
// below Total only when the run was cancelled or aborted.
func (r *RunResult) Processed() int {
	return r.SuccessCount + r.FailureCount
}

// Failed reports whether the run itself failed, as opposed to some files.
func (r *RunResult) Failed() bool {
	for _, e := range r.Errors {
		if e.ErrorType.RunLevel() {
			return true
		}
	}
	return false
}

// outcomeLabel is the metrics label for a run's terminal state.
func (r *RunResult) outcomeLabel() string {
	for _, e := range r.Errors {
		switch e.ErrorType {
		case ErrFolderNotFound:
			return "folder_not_found"
		case ErrSystemError:
			return "system_error"
		}
	}
	if r.Cancelled {
		return "cancelled"
	}
	return "complete"
}

// Progress is reported after every processed file.
type Progress struct {
	Phase   Phase
	Done    int
	Total   int
	Current string
}
