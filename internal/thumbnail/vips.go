package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"aigen-library/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsMu        sync.Mutex
	vipsStarted   bool
	vipsAvailable bool
)

// vipsLogSettings maps the application log level to a libvips threshold
// and a handler that forwards messages to our logger. glib levels shrink as
// severity grows, so libvips passes through everything <= the threshold.
func vipsLogSettings(level logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	var threshold vips.LogLevel
	switch level {
	case logging.LevelDebug:
		threshold = vips.LogLevelDebug
	case logging.LevelWarn:
		threshold = vips.LogLevelWarning
	case logging.LevelError:
		threshold = vips.LogLevelCritical
	default:
		threshold = vips.LogLevelWarning
	}

	return threshold, func(domain string, lvl vips.LogLevel, msg string) {
		switch vipsLogSeverity(threshold, lvl) {
		case logging.LevelError:
			logging.Error("[%s] %s", domain, msg)
		case logging.LevelWarn:
			logging.Warn("[%s] %s", domain, msg)
		case logging.LevelDebug:
			logging.Debug("[%s] %s", domain, msg)
		}
	}
}

// vipsLogSeverity returns the application level a libvips message is
// logged at, or -1 when it is below threshold and dropped.
func vipsLogSeverity(threshold, lvl vips.LogLevel) logging.LogLevel {
	if lvl > threshold {
		return -1
	}
	switch lvl {
	case vips.LogLevelError, vips.LogLevelCritical:
		return logging.LevelError
	case vips.LogLevelWarning:
		return logging.LevelWarn
	case vips.LogLevelMessage, vips.LogLevelInfo, vips.LogLevelDebug:
		return logging.LevelDebug
	}
	return -1
}

// InitVips starts libvips once per process. Call ShutdownVips on exit.
func InitVips() error {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStarted {
		return nil
	}

	threshold, handler := vipsLogSettings(logging.GetLevel())
	vips.LoggingSettings(handler, threshold)

	// Thumbnails are small; keep the libvips operation cache modest.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsStarted = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStarted {
		vips.Shutdown()
		vipsStarted = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether InitVips has run.
func IsVipsAvailable() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsAvailable
}

// LoadImageWithVips decodes path with shrink-on-load so large sources
// never materialize at full resolution.
func LoadImageWithVips(path string, width, height int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	logging.Debug("vips loaded %s: %dx%d", filepath.Base(path), ref.Width(), ref.Height())

	if err := ref.Thumbnail(width, height, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("vips thumbnail: %w", err)
	}

	buf, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode vips output: %w", err)
	}
	return img, nil
}
