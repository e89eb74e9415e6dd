package thumbnail

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"aigen-library/internal/filesystem"
	"aigen-library/internal/logging"
	"aigen-library/internal/metrics"

	// Source decoders
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxEdge is the longest side of a generated thumbnail.
	DefaultMaxEdge = 256
	// DefaultQuality is the JPEG quality of generated thumbnails.
	DefaultQuality = 85
	// DefaultMemoryEntries bounds the in-memory LRU.
	DefaultMemoryEntries = 512

	// Extension is the suffix of every cached artifact.
	Extension = ".jpg"
)

// unixToTicks is the number of seconds between 0001-01-01 and 1970-01-01.
const unixToTicks = 62135596800

// ErrNotFound is returned when the source image does not exist.
var ErrNotFound = errors.New("thumbnail: source not found")

// Cache generates and serves thumbnails from a directory.
type Cache struct {
	dir     string
	maxEdge int
	quality int
	useVips bool
	retry   filesystem.RetryConfig

	memEntries int
	mem        *MemoryCache
	group      singleflight.Group

	generations atomic.Int64

	// beforeGenerate runs inside the shared flight; tests use it to hold
	// a generation open.
	beforeGenerate func()
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEdge sets the longest thumbnail side in pixels.
func WithMaxEdge(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEdge = n
		}
	}
}

// WithQuality sets the JPEG quality (1-100).
func WithQuality(q int) Option {
	return func(c *Cache) {
		if q > 0 && q <= 100 {
			c.quality = q
		}
	}
}

// WithVips decodes sources with libvips when it has been initialized.
func WithVips(enabled bool) Option {
	return func(c *Cache) {
		c.useVips = enabled
	}
}

// WithMemoryEntries sets the in-memory LRU capacity.
func WithMemoryEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.memEntries = n
		}
	}
}

// WithRetryConfig overrides the NFS retry policy for source access.
func WithRetryConfig(cfg filesystem.RetryConfig) Option {
	return func(c *Cache) {
		c.retry = cfg
	}
}

// New creates the cache directory if needed and returns a Cache over it.
func New(dir string, opts ...Option) (*Cache, error) {
	c := &Cache{
		dir:        dir,
		maxEdge:    DefaultMaxEdge,
		quality:    DefaultQuality,
		retry:      filesystem.DefaultRetryConfig(),
		memEntries: DefaultMemoryEntries,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail cache dir: %w", err)
	}

	mem, err := NewMemoryCache(c.memEntries)
	if err != nil {
		return nil, err
	}
	c.mem = mem

	logging.Debug("Thumbnail cache: dir=%s maxEdge=%d quality=%d vips=%v", dir, c.maxEdge, c.quality, c.useVips)
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Generations returns how many thumbnails this Cache has generated.
func (c *Cache) Generations() int64 {
	return c.generations.Load()
}

// Memory returns the in-memory LRU in front of the directory.
func (c *Cache) Memory() *MemoryCache {
	return c.mem
}

// Ticks converts t to 100ns intervals since 0001-01-01 UTC.
func Ticks(t time.Time) int64 {
	t = t.UTC()
	return (t.Unix()+unixToTicks)*10_000_000 + int64(t.Nanosecond()/100)
}

// Key derives the cache key for a source path and modification time.
func Key(path string, modTime time.Time) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := blake2b.Sum256([]byte(abs + "_" + strconv.FormatInt(Ticks(modTime), 10)))
	return hex.EncodeToString(sum[:])
}

// ArtifactPath returns where the thumbnail for key lives.
func (c *Cache) ArtifactPath(key string) string {
	return filepath.Join(c.dir, key+Extension)
}

// GetOrGenerate returns the path of the thumbnail for path, generating it
// if there is no valid cached artifact.
func (c *Cache) GetOrGenerate(ctx context.Context, path string) (string, error) {
	info, err := filesystem.StatWithRetry(path, c.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("stat source: %w", err)
	}

	key := Key(path, info.ModTime())
	artifact := c.ArtifactPath(key)

	if c.valid(artifact, info.ModTime()) {
		metrics.ThumbnailCacheHits.Inc()
		logging.Debug("Thumbnail cache hit: %s", path)
		return artifact, nil
	}
	metrics.ThumbnailCacheMisses.Inc()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The flight is shared by every caller waiting on key, so it must not
	// inherit one caller's cancellation. Each caller still stops waiting
	// when its own ctx ends.
	flight := c.group.DoChan(key, func() (interface{}, error) {
		if c.beforeGenerate != nil {
			c.beforeGenerate()
		}
		// Another caller may have finished while we waited.
		if c.valid(artifact, info.ModTime()) {
			return nil, nil
		}
		return nil, c.generate(context.WithoutCancel(ctx), path, artifact)
	})

	select {
	case res := <-flight:
		if res.Err != nil {
			return "", res.Err
		}
		return artifact, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Bytes returns the thumbnail for path, serving repeat requests from
// memory.
func (c *Cache) Bytes(ctx context.Context, path string) ([]byte, error) {
	info, err := filesystem.StatWithRetry(path, c.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	key := Key(path, info.ModTime())
	if data, ok := c.mem.Get(key); ok {
		return data, nil
	}

	artifact, err := c.GetOrGenerate(ctx, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(artifact)
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	c.mem.Add(key, data)
	return data, nil
}

// valid reports whether artifact exists, is not older than the source and
// still looks like a JPEG.
func (c *Cache) valid(artifact string, sourceMod time.Time) bool {
	info, err := os.Stat(artifact)
	if err != nil {
		return false
	}
	if info.ModTime().Before(sourceMod) || info.Size() == 0 {
		return false
	}
	if !readable(artifact) {
		metrics.ThumbnailCacheInvalid.Inc()
		logging.Debug("Thumbnail %s is unreadable, regenerating", artifact)
		return false
	}
	return true
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = jpeg.DecodeConfig(f)
	return err == nil
}

func (c *Cache) generate(ctx context.Context, path, artifact string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	decoder := "native"

	var img image.Image
	var err error
	if c.useVips && IsVipsAvailable() {
		decoder = "vips"
		img, err = LoadImageWithVips(path, c.maxEdge, c.maxEdge)
		if err != nil {
			logging.Debug("vips decode failed for %s: %v, falling back", path, err)
			decoder = "native"
			img, err = c.decode(path)
		}
	} else {
		img, err = c.decode(path)
	}
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error_decode").Inc()
		return fmt.Errorf("decode %s: %w", path, err)
	}

	thumb := imaging.Fit(img, c.maxEdge, c.maxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: c.quality}); err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error_encode").Inc()
		return fmt.Errorf("encode thumbnail: %w", err)
	}

	if err := c.writeAtomic(artifact, buf.Bytes()); err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return err
	}

	c.generations.Add(1)
	metrics.ThumbnailGenerationsTotal.WithLabelValues("success").Inc()
	metrics.ThumbnailGenerationDuration.WithLabelValues(decoder).Observe(time.Since(start).Seconds())
	logging.Debug("Thumbnail cached: %s -> %s (%dx%d)", path, filepath.Base(artifact),
		thumb.Bounds().Dx(), thumb.Bounds().Dy())
	return nil
}

func (c *Cache) decode(path string) (image.Image, error) {
	f, err := filesystem.OpenWithRetry(path, c.retry)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return imaging.Decode(f, imaging.AutoOrientation(true))
}

// writeAtomic writes data to a temp file in the cache dir and renames it
// over dst.
func (c *Cache) writeAtomic(dst string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".thumb-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp thumbnail: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp thumbnail: %w", err)
	}
	if err := filesystem.RenameWithRetry(tmpName, dst, c.retry); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish thumbnail: %w", err)
	}
	return nil
}

// Clear removes every cached thumbnail and recreates the empty directory.
func (c *Cache) Clear() error {
	c.mem.Purge()
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("remove thumbnail cache: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("recreate thumbnail cache: %w", err)
	}
	logging.Info("Thumbnail cache cleared: %s", c.dir)
	return nil
}

// CleanupInvalid removes artifacts that can no longer be read as JPEG and
// leftover temp files. It returns how many files were removed.
func (c *Cache) CleanupInvalid() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("read thumbnail cache: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		full := filepath.Join(c.dir, name)

		stale := strings.HasPrefix(name, ".thumb-") && strings.HasSuffix(name, ".tmp")
		if !stale && strings.HasSuffix(name, Extension) && !readable(full) {
			stale = true
			metrics.ThumbnailCacheInvalid.Inc()
		}
		if !stale {
			continue
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Failed to remove invalid thumbnail %s: %v", full, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logging.Info("Removed %d invalid thumbnails from %s", removed, c.dir)
	}
	return removed, nil
}

// Stats reports the number of cached artifacts and their total size.
func (c *Cache) Stats() (count int, size int64, err error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		count++
		size += info.Size()
	}
	return count, size, nil
}
