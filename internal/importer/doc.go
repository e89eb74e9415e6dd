// Package importer walks a library folder and imports every supported image
// it has not seen before.
//
// A run enumerates candidates first, then feeds them to a bounded worker
// pool. Each worker extracts generation metadata and requests a thumbnail
// for one file and produces an Outcome. A single collector consumes the
// outcomes, hands them to the OutcomeSink and builds the RunResult, so the
// result is never shared between goroutines.
//
// Per-file problems, including panics, are recorded as typed ImportErrors
// and never abort the run. Only a missing root (FolderNotFound) or a failed
// enumeration (SystemError) are run-level errors.
package importer
