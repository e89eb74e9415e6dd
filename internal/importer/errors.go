package importer

import (
	"errors"
	"fmt"
)

// ErrorType classifies an import error.
type ErrorType string

const (
	// Run-level errors.
	ErrFolderNotFound ErrorType = "FolderNotFound"
	ErrSystemError    ErrorType = "SystemError"

	// Per-file errors. These never abort a run.
	ErrFileNotFound       ErrorType = "FileNotFound"
	ErrUnsupportedFormat  ErrorType = "UnsupportedFormat"
	ErrMetadataExtraction ErrorType = "MetadataExtraction"
	ErrImport             ErrorType = "ImportError"
	ErrOther              ErrorType = "Other"
)

// RunLevel reports whether t ends the run rather than a single file.
func (t ErrorType) RunLevel() bool {
	return t == ErrFolderNotFound || t == ErrSystemError
}

// ImportError records one failure during a run.
type ImportError struct {
	FilePath     string    `json:"filePath"`
	ErrorType    ErrorType `json:"errorType"`
	ErrorMessage string    `json:"errorMessage"`

	err error
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	if e.FilePath == "" {
		return fmt.Sprintf("%s: %s", e.ErrorType, e.ErrorMessage)
	}
	return fmt.Sprintf("%s: %s: %s", e.ErrorType, e.FilePath, e.ErrorMessage)
}

// Unwrap returns the underlying cause, if any.
func (e *ImportError) Unwrap() error {
	return e.err
}

func newError(t ErrorType, path string, cause error, msg string) *ImportError {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &ImportError{FilePath: path, ErrorType: t, ErrorMessage: msg, err: cause}
}

// NewFolderNotFound is returned when the import root is missing or not a
// directory.
func NewFolderNotFound(root string) *ImportError {
	return newError(ErrFolderNotFound, root, nil, fmt.Sprintf("folder not found: %s", root))
}

// NewSystemError wraps a failure while enumerating files.
func NewSystemError(path string, err error) *ImportError {
	return newError(ErrSystemError, path, err, "")
}

// NewFileNotFound is recorded when a candidate disappears mid-run.
func NewFileNotFound(path string) *ImportError {
	return newError(ErrFileNotFound, path, nil, "file not found")
}

// NewUnsupportedFormat is recorded for files with no metadata container.
func NewUnsupportedFormat(path, msg string) *ImportError {
	return newError(ErrUnsupportedFormat, path, nil, msg)
}

// NewMetadataExtraction is recorded when no generation metadata could be
// recovered from a readable file.
func NewMetadataExtraction(path, msg string) *ImportError {
	return newError(ErrMetadataExtraction, path, nil, msg)
}

// NewImport wraps any other failure while building an outcome.
func NewImport(path string, err error) *ImportError {
	return newError(ErrImport, path, err, "")
}

// NewOther records a failure that fits no other category, such as a
// recovered panic.
func NewOther(path string, msg string) *ImportError {
	return newError(ErrOther, path, nil, msg)
}

// Is reports whether err is an *ImportError of type t.
func Is(err error, t ErrorType) bool {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.ErrorType == t
	}
	return false
}
