package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"aigen-library/internal/filesystem"
	"aigen-library/internal/logging"
	"aigen-library/internal/mediatypes"
	"aigen-library/internal/metrics"
	"aigen-library/internal/pngchunk"
)

var log = logging.Component("metadata")

// maxSidecarSize bounds standalone parameter text files.
const maxSidecarSize = 1 << 20

// Extractor reads generation metadata from image files.
type Extractor struct {
	validateCRC bool
	retry       filesystem.RetryConfig
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithCRCValidation makes PNG scanning stop at the first chunk whose
// checksum does not match.
func WithCRCValidation(enabled bool) ExtractorOption {
	return func(e *Extractor) {
		e.validateCRC = enabled
	}
}

// WithRetryConfig overrides the NFS retry policy used to open files.
func WithRetryConfig(cfg filesystem.RetryConfig) ExtractorOption {
	return func(e *Extractor) {
		e.retry = cfg
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{retry: filesystem.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads path and returns its canonical metadata. It never returns
// an error; every failure is a Result with RequiresManualEntry set.
func (e *Extractor) Extract(ctx context.Context, path string) Result {
	start := time.Now()
	format := mediatypes.FormatOf(path)

	res := e.extract(ctx, path, format)
	if mediatypes.Ext(path) != ".txt" {
		res = e.withSidecar(path, res)
	}

	label := string(format)
	if !mediatypes.MetadataFormats[format] {
		label = "other"
	}
	metrics.MetadataExtractionDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	outcome := "success"
	if !res.Success {
		outcome = "unresolved"
	}
	metrics.MetadataExtractionsTotal.WithLabelValues(res.Ecosystem.String(), outcome).Inc()

	return res
}

func (e *Extractor) extract(ctx context.Context, path string, format mediatypes.Format) Result {
	if err := ctx.Err(); err != nil {
		return unresolved(ReasonCancelled, "Metadata extraction cancelled: %v", err)
	}

	info, err := filesystem.StatWithRetry(path, e.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return unresolved(ReasonFileNotFound, "File not found")
		}
		return unresolved(ReasonExtractionFailed, "Metadata extraction failed: %v", err)
	}
	if info.IsDir() {
		return unresolved(ReasonUnsupportedFormat, "Unsupported file format: directory")
	}

	ext := mediatypes.Ext(path)
	if ext == ".txt" {
		return e.extractSidecar(path, info.Size())
	}
	if !mediatypes.MetadataFormats[format] {
		return unresolved(ReasonUnsupportedFormat, "Unsupported file format: %s", ext)
	}

	f, err := filesystem.OpenWithRetry(path, e.retry)
	if err != nil {
		return unresolved(ReasonExtractionFailed, "Metadata extraction failed: %v", err)
	}
	defer f.Close()

	switch format {
	case mediatypes.FormatPNG:
		return e.extractPNG(ctx, path, f)
	case mediatypes.FormatJPEG:
		return extractEXIF(path, "JPEG", func() (Metadata, Ecosystem, error) { return DecodeEXIF(f) })
	case mediatypes.FormatWebP:
		return extractEXIF(path, "WebP", func() (Metadata, Ecosystem, error) { return DecodeWebPEXIF(f) })
	}
	return unresolved(ReasonUnsupportedFormat, "Unsupported file format: %s", ext)
}

func (e *Extractor) extractPNG(ctx context.Context, path string, r io.Reader) Result {
	pr, err := pngchunk.NewReader(r,
		pngchunk.WithChecksumValidation(e.validateCRC),
		pngchunk.WithTextOnly(true))
	if err != nil {
		if errors.Is(err, pngchunk.ErrNotPNG) {
			return unresolved(ReasonNoMetadataFound, "Invalid PNG file")
		}
		return unresolved(ReasonExtractionFailed, "Metadata extraction failed: %v", err)
	}

	for chunk := range pr.All() {
		if !pngchunk.IsTextChunk(chunk.Type) {
			metrics.PNGChunksRead.WithLabelValues("other").Inc()
			continue
		}
		metrics.PNGChunksRead.WithLabelValues("text").Inc()

		if err := ctx.Err(); err != nil {
			return unresolved(ReasonCancelled, "Metadata extraction cancelled: %v", err)
		}

		txt, err := pngchunk.ParseText(chunk)
		if err != nil {
			log.Debug("skipping %s chunk in %s: %v", chunk.Type, path, err)
			continue
		}

		eco := Classify(txt.Keyword, txt.Value)
		if eco == EcosystemUnknown {
			continue
		}
		if md := Decode(eco, txt.Value); !md.IsEmpty() {
			log.Debug("%s: %s metadata from %q", path, eco.DisplayName(), txt.Keyword)
			return resolved(md, eco)
		}
	}

	if err := pr.Err(); err != nil {
		return unresolved(ReasonExtractionFailed, "Metadata extraction failed: %v", err)
	}
	if !pr.WellFormed() {
		metrics.PNGMalformedTotal.Inc()
		log.Debug("%s: chunk stream ended early after %d chunks", path, pr.Count())
	}
	return unresolved(ReasonNoMetadataFound, "No metadata found in PNG file")
}

func extractEXIF(path, kind string, decode func() (Metadata, Ecosystem, error)) Result {
	md, eco, err := decode()
	if err != nil && !errors.Is(err, ErrNoEXIF) {
		log.Debug("%s: EXIF decode failed: %v", path, err)
	}
	if md.IsEmpty() {
		return unresolved(ReasonNoMetadataFound, "No metadata found in %s file", kind)
	}
	return resolved(md, eco)
}

func (e *Extractor) extractSidecar(path string, size int64) Result {
	if size > maxSidecarSize {
		return unresolved(ReasonUnsupportedFormat, "Parameters file too large: %d bytes", size)
	}
	f, err := filesystem.OpenWithRetry(path, e.retry)
	if err != nil {
		return unresolved(ReasonExtractionFailed, "Metadata extraction failed: %v", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxSidecarSize))
	if err != nil {
		return unresolved(ReasonExtractionFailed, "Error extracting text metadata: %v", err)
	}

	md, eco := DecodeText(string(content))
	if md.IsEmpty() {
		return unresolved(ReasonNoMetadataFound, "No recognized metadata found in text file")
	}
	return resolved(md, eco)
}

// withSidecar fills gaps in res from a parameters file saved next to the
// image as <name>.txt. Fields res already has are kept. A sidecar also
// resolves images whose container carried nothing usable.
func (e *Extractor) withSidecar(path string, res Result) Result {
	if !res.Success && res.Reason != ReasonNoMetadataFound && res.Reason != ReasonUnsupportedFormat {
		return res
	}

	sidecar := strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
	info, err := filesystem.StatWithRetry(sidecar, e.retry)
	if err != nil || !info.Mode().IsRegular() {
		return res
	}

	side := e.extractSidecar(sidecar, info.Size())
	if !side.Success {
		return res
	}
	if res.Success {
		res.Metadata.FillFrom(side.Metadata)
		return res
	}
	log.Debug("%s: metadata from sidecar %s", path, filepath.Base(sidecar))
	return side
}

// String renders a short human summary, used by the CLI.
func (r Result) String() string {
	if r.Success {
		return fmt.Sprintf("%s metadata", r.Ecosystem.DisplayName())
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}
