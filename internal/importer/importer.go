package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"aigen-library/internal/filesystem"
	"aigen-library/internal/logging"
	"aigen-library/internal/mediatypes"
	"aigen-library/internal/metadata"
	"aigen-library/internal/metrics"
	"aigen-library/internal/workers"

	"github.com/oklog/ulid/v2"
)

var log = logging.Component("import")

// maxDefaultWorkers keeps the default pool polite on network shares.
const maxDefaultWorkers = 8

// Extractor recovers generation metadata from a file.
type Extractor interface {
	Extract(ctx context.Context, path string) metadata.Result
}

// Thumbnailer produces a thumbnail for a file and returns its path.
type Thumbnailer interface {
	GetOrGenerate(ctx context.Context, path string) (string, error)
}

// OutcomeSink receives outcomes one at a time, in completion order.
// It is only ever called from a single goroutine per run.
type OutcomeSink interface {
	Accept(ctx context.Context, o Outcome) error
}

// Gate holds workers back between files, e.g. under memory pressure.
type Gate interface {
	Wait(ctx context.Context) error
}

// SinkFunc adapts a function to OutcomeSink.
type SinkFunc func(ctx context.Context, o Outcome) error

// Accept calls f.
func (f SinkFunc) Accept(ctx context.Context, o Outcome) error {
	return f(ctx, o)
}

// Importer walks a folder and imports every supported image in it.
type Importer struct {
	extractor Extractor
	thumbs    Thumbnailer
	known     func(path string) bool
	sink      OutcomeSink
	progress  func(Progress)
	gate      Gate
	workers   int
	retry     filesystem.RetryConfig

	phase   atomic.Int32
	running atomic.Bool
}

// Option configures an Importer.
type Option func(*Importer)

// WithKnownPaths skips files for which known returns true. Paths passed to
// known are absolute.
func WithKnownPaths(known func(path string) bool) Option {
	return func(im *Importer) {
		im.known = known
	}
}

// WithSink sets where outcomes are delivered.
func WithSink(sink OutcomeSink) Option {
	return func(im *Importer) {
		im.sink = sink
	}
}

// WithWorkers sets the pool size. Zero or less selects a default.
func WithWorkers(n int) Option {
	return func(im *Importer) {
		im.workers = n
	}
}

// WithProgress registers a callback invoked after every processed file.
func WithProgress(fn func(Progress)) Option {
	return func(im *Importer) {
		im.progress = fn
	}
}

// WithGate makes every worker wait on g before starting a file.
func WithGate(g Gate) Option {
	return func(im *Importer) {
		im.gate = g
	}
}

// WithRetryConfig overrides the NFS retry policy for stat calls.
func WithRetryConfig(cfg filesystem.RetryConfig) Option {
	return func(im *Importer) {
		im.retry = cfg
	}
}

// New creates an Importer. thumbs may be nil, in which case no thumbnails
// are generated.
func New(extractor Extractor, thumbs Thumbnailer, opts ...Option) *Importer {
	im := &Importer{
		extractor: extractor,
		thumbs:    thumbs,
		retry:     filesystem.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(im)
	}
	im.workers = workers.Resolve(im.workers, func() int {
		return workers.ForIO(maxDefaultWorkers)
	})
	return im
}

// Phase returns the state of the current run.
func (im *Importer) Phase() Phase {
	return Phase(im.phase.Load())
}

// IsRunning reports whether a run is in progress.
func (im *Importer) IsRunning() bool {
	return im.running.Load()
}

// Workers returns the pool size.
func (im *Importer) Workers() int {
	return im.workers
}

type candidate struct {
	path    string
	relPath string
}

type result struct {
	outcome Outcome
	err     *ImportError
	// cancelled marks a file whose extraction was cut short by the run
	// ending. It has no outcome and is not counted.
	cancelled bool
}

// Run imports every supported image under root. The returned result is
// never nil. Cancelling ctx stops new work and returns partial counts.
func (im *Importer) Run(ctx context.Context, root string, recursive bool) *RunResult {
	res := &RunResult{
		RunID:         ulid.Make().String(),
		Root:          root,
		Recursive:     recursive,
		Errors:        []*ImportError{},
		ImportedPaths: []string{},
		StartedAt:     time.Now(),
	}

	if !im.running.CompareAndSwap(false, true) {
		res.Errors = append(res.Errors, NewSystemError(root, errors.New("an import is already running")))
		return res
	}
	defer im.running.Store(false)

	metrics.ImportIsRunning.Set(1)
	defer func() {
		res.Duration = time.Since(res.StartedAt)
		im.phase.Store(int32(PhaseComplete))
		metrics.ImportIsRunning.Set(0)
		metrics.ImportRunsTotal.WithLabelValues(res.outcomeLabel()).Inc()
		metrics.ImportRunDuration.Observe(res.Duration.Seconds())
		metrics.ImportLastRunTimestamp.SetToCurrentTime()
		for _, e := range res.Errors {
			metrics.ImportErrorsTotal.WithLabelValues(string(e.ErrorType)).Inc()
		}
		log.Info("Run %s finished in %v: total=%d success=%d failed=%d skipped=%d cancelled=%v",
			res.RunID, res.Duration, res.Total, res.SuccessCount, res.FailureCount, res.Skipped, res.Cancelled)
	}()

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
		res.Root = abs
	}

	info, err := filesystem.StatWithRetry(root, im.retry)
	if err != nil || !info.IsDir() {
		log.Warn("Import root %s is not a folder", root)
		res.Errors = append(res.Errors, NewFolderNotFound(root))
		return res
	}

	log.Info("Run %s: importing %s (recursive=%v, workers=%d)", res.RunID, root, recursive, im.workers)

	im.phase.Store(int32(PhaseScanning))
	candidates, skipped, scanErr := im.scan(ctx, root, recursive)
	res.Total = len(candidates)
	res.Skipped = skipped
	if skipped > 0 {
		metrics.ImportFilesTotal.WithLabelValues("skipped").Add(float64(skipped))
	}
	if scanErr != nil {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res
		}
		// Keep going with whatever was enumerated.
		log.Error("Enumeration of %s failed: %v", root, scanErr)
		res.Errors = append(res.Errors, NewSystemError(root, scanErr))
	}

	log.Info("Run %s: %d candidates, %d already imported", res.RunID, len(candidates), skipped)

	im.phase.Store(int32(PhaseExtracting))
	im.process(ctx, candidates, res)

	if ctx.Err() != nil {
		res.Cancelled = true
	}
	return res
}

// scan enumerates import candidates under root in walk order.
func (im *Importer) scan(ctx context.Context, root string, recursive bool) ([]candidate, int, error) {
	var candidates []candidate
	skipped := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			log.Warn("Error accessing %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !mediatypes.IsImportable(path) {
			return nil
		}

		if im.known != nil && im.known(path) {
			skipped++
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = d.Name()
		}
		candidates = append(candidates, candidate{path: path, relPath: filepath.ToSlash(rel)})
		return nil
	})

	return candidates, skipped, err
}

// process runs candidates through the worker pool. Only this goroutine
// writes to res.
func (im *Importer) process(ctx context.Context, candidates []candidate, res *RunResult) {
	if len(candidates) == 0 {
		return
	}

	numWorkers := im.workers
	if numWorkers > len(candidates) {
		numWorkers = len(candidates)
	}

	jobs := make(chan candidate)
	results := make(chan result, numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			log.Debug("Worker %d started", id)
			for c := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if im.gate != nil && im.gate.Wait(ctx) != nil {
					continue
				}
				results <- im.processFile(ctx, c)
			}
			log.Debug("Worker %d finished", id)
		}(i)
	}

	go func() {
		defer close(jobs)
		for i, c := range candidates {
			select {
			case jobs <- c:
			case <-ctx.Done():
				log.Info("Cancelled after queueing %d of %d files", i, len(candidates))
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for r := range results {
		if r.cancelled {
			log.Debug("Dropped %s: run cancelled mid-extraction", r.outcome.SourcePath)
			continue
		}
		im.phase.Store(int32(PhaseAggregating))
		im.aggregate(ctx, r, res)
		done++
		if im.progress != nil {
			im.progress(Progress{Phase: PhaseExtracting, Done: done, Total: len(candidates), Current: r.outcome.SourcePath})
		}
		im.phase.Store(int32(PhaseExtracting))
	}
}

// aggregate folds one result into res and hands the outcome to the sink.
func (im *Importer) aggregate(ctx context.Context, r result, res *RunResult) {
	o := r.outcome

	if o.Status != StatusFailed && im.sink != nil {
		// The file's work is done; a cancelled run still keeps it.
		if err := im.sink.Accept(context.WithoutCancel(ctx), o); err != nil {
			log.Error("Failed to store %s: %v", o.SourcePath, err)
			o.Status = StatusFailed
			o.FailureReason = err.Error()
			r.err = NewImport(o.SourcePath, err)
		}
	}

	switch o.Status {
	case StatusSuccess:
		res.SuccessCount++
		res.ImportedPaths = append(res.ImportedPaths, o.SourcePath)
	case StatusRequiresManualEntry:
		res.FailureCount++
		res.ManualCount++
		res.ImportedPaths = append(res.ImportedPaths, o.SourcePath)
	default:
		res.FailureCount++
	}
	if r.err != nil {
		res.Errors = append(res.Errors, r.err)
	}

	metrics.ImportFilesTotal.WithLabelValues(string(o.Status)).Inc()
}

// processFile builds the outcome for one file. Panics are contained here so
// one bad file cannot take down the run.
func (im *Importer) processFile(ctx context.Context, c candidate) (r result) {
	start := time.Now()
	defer func() {
		metrics.ImportFileDuration.Observe(time.Since(start).Seconds())
	}()

	r.outcome = Outcome{
		SourcePath:   c.path,
		RelativePath: c.relPath,
		FileName:     filepath.Base(c.path),
		Status:       StatusFailed,
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("Panic importing %s: %v\n%s", c.path, p, debug.Stack())
			r.outcome.Status = StatusFailed
			r.outcome.FailureReason = fmt.Sprintf("panic: %v", p)
			r.err = NewOther(c.path, r.outcome.FailureReason)
		}
	}()

	info, err := filesystem.StatWithRetry(c.path, im.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.outcome.FailureReason = "file not found"
			r.err = NewFileNotFound(c.path)
		} else {
			r.outcome.FailureReason = err.Error()
			r.err = NewImport(c.path, err)
		}
		return r
	}
	r.outcome.FileSize = info.Size()
	r.outcome.ModifiedAt = info.ModTime()
	r.outcome.CreatedAt = info.ModTime()

	md := im.extractor.Extract(ctx, c.path)
	if md.Reason == metadata.ReasonCancelled || (!md.Success && ctx.Err() != nil) {
		r.cancelled = true
		return r
	}
	r.outcome.Metadata = md.Metadata
	r.outcome.Ecosystem = md.Ecosystem
	r.outcome.Reason = md.Reason

	// Thumbnails are independent of the metadata outcome.
	if im.thumbs != nil {
		if thumb, err := im.thumbs.GetOrGenerate(ctx, c.path); errors.Is(err, context.Canceled) {
			log.Debug("Thumbnail skipped for %s: run cancelled", c.path)
		} else if err != nil {
			log.Warn("Thumbnail failed for %s: %v", c.path, err)
		} else {
			r.outcome.ThumbnailPath = thumb
		}
	}

	switch {
	case md.Success:
		r.outcome.Status = StatusSuccess
	case md.Reason == metadata.ReasonFileNotFound:
		r.outcome.Status = StatusFailed
		r.outcome.FailureReason = md.Message
		r.err = NewFileNotFound(c.path)
	case md.Reason == metadata.ReasonExtractionFailed:
		// Unreadable, not merely unlabelled: manual entry cannot help.
		r.outcome.Status = StatusFailed
		r.outcome.FailureReason = md.Message
		r.err = NewImport(c.path, errors.New(md.Message))
	case md.Reason == metadata.ReasonUnsupportedFormat:
		r.outcome.Status = StatusRequiresManualEntry
		r.outcome.FailureReason = md.Message
		r.err = NewUnsupportedFormat(c.path, md.Message)
	default:
		r.outcome.Status = StatusRequiresManualEntry
		r.outcome.FailureReason = md.Message
		r.err = NewMetadataExtraction(c.path, md.Message)
	}

	return r
}
