package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aigen-library/internal/importer"
	"aigen-library/internal/metadata"
	"aigen-library/internal/metrics"
)

// ErrNotFound is returned when no image matches.
var ErrNotFound = errors.New("catalog: image not found")

// Image is one catalog row.
type Image struct {
	ID            int64              `json:"id"`
	Path          string             `json:"path"`
	RelativePath  string             `json:"relativePath"`
	FileName      string             `json:"fileName"`
	FileSize      int64              `json:"fileSize"`
	CreatedAt     time.Time          `json:"createdAt"`
	ModifiedAt    time.Time          `json:"modifiedAt"`
	Metadata      metadata.Metadata  `json:"metadata"`
	Ecosystem     metadata.Ecosystem `json:"ecosystem"`
	ThumbnailPath string             `json:"thumbnailPath,omitempty"`
	Status        importer.Status    `json:"status"`
	ErrorMessage  string             `json:"errorMessage,omitempty"`
	ImportedAt    time.Time          `json:"importedAt"`
}

// FromOutcome converts an import outcome into a catalog row.
func FromOutcome(o importer.Outcome) *Image {
	return &Image{
		Path:          o.SourcePath,
		RelativePath:  o.RelativePath,
		FileName:      o.FileName,
		FileSize:      o.FileSize,
		CreatedAt:     o.CreatedAt,
		ModifiedAt:    o.ModifiedAt,
		Metadata:      o.Metadata,
		Ecosystem:     o.Ecosystem,
		ThumbnailPath: o.ThumbnailPath,
		Status:        o.Status,
		ErrorMessage:  o.FailureReason,
	}
}

const imageColumns = `id, path, relative_path, file_name, file_size, created_at, modified_at,
	prompt, negative_prompt, steps, sampler, cfg_scale, seed, width, height, model_name, model_hash,
	ecosystem, thumbnail_path, status, error_message, imported_at`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*Image, error) {
	var (
		img                         Image
		created, modified, imported int64
		ecosystem, status           string
	)
	md := &img.Metadata
	err := row.Scan(
		&img.ID, &img.Path, &img.RelativePath, &img.FileName, &img.FileSize, &created, &modified,
		&md.Prompt, &md.NegativePrompt, &md.Steps, &md.Sampler, &md.CFGScale, &md.Seed,
		&md.Width, &md.Height, &md.ModelName, &md.ModelHash,
		&ecosystem, &img.ThumbnailPath, &status, &img.ErrorMessage, &imported,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	img.CreatedAt = time.Unix(created, 0)
	img.ModifiedAt = time.Unix(modified, 0)
	img.ImportedAt = time.Unix(imported, 0)
	img.Status = importer.Status(status)
	if eco, err := metadata.ParseEcosystem(ecosystem); err == nil {
		img.Ecosystem = eco
	}
	return &img, nil
}

func metadataArgs(md metadata.Metadata) []any {
	return []any{
		md.Prompt, md.NegativePrompt, md.Steps, md.Sampler, md.CFGScale, md.Seed,
		md.Width, md.Height, md.ModelName, md.ModelHash,
	}
}

func insertImage(ctx context.Context, ex execer, img *Image) error {
	args := []any{img.Path, img.RelativePath, img.FileName, img.FileSize,
		img.CreatedAt.Unix(), img.ModifiedAt.Unix()}
	args = append(args, metadataArgs(img.Metadata)...)
	args = append(args, img.Ecosystem.String(), img.ThumbnailPath, string(img.Status), img.ErrorMessage)

	res, err := ex.ExecContext(ctx, `
	INSERT INTO images (path, relative_path, file_name, file_size, created_at, modified_at,
		prompt, negative_prompt, steps, sampler, cfg_scale, seed, width, height, model_name, model_hash,
		ecosystem, thumbnail_path, status, error_message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	img.ID = id
	return nil
}

func updateImage(ctx context.Context, ex execer, img *Image) error {
	args := []any{img.RelativePath, img.FileName, img.FileSize,
		img.CreatedAt.Unix(), img.ModifiedAt.Unix()}
	args = append(args, metadataArgs(img.Metadata)...)
	args = append(args, img.Ecosystem.String(), img.ThumbnailPath, string(img.Status), img.ErrorMessage, img.ID)

	res, err := ex.ExecContext(ctx, `
	UPDATE images SET relative_path = ?, file_name = ?, file_size = ?, created_at = ?, modified_at = ?,
		prompt = ?, negative_prompt = ?, steps = ?, sampler = ?, cfg_scale = ?, seed = ?,
		width = ?, height = ?, model_name = ?, model_hash = ?,
		ecosystem = ?, thumbnail_path = ?, status = ?, error_message = ?,
		imported_at = strftime('%s', 'now')
	WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Add inserts img and sets its ID.
func (c *Catalog) Add(ctx context.Context, img *Image) (err error) {
	start := time.Now()
	defer func() { recordQuery("add_image", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err = insertImage(ctx, c.db, img); err != nil {
		return fmt.Errorf("add image %s: %w", img.Path, err)
	}
	return nil
}

// Update overwrites the row with img.ID.
func (c *Catalog) Update(ctx context.Context, img *Image) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_image", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err = updateImage(ctx, c.db, img); err != nil {
		return fmt.Errorf("update image %d: %w", img.ID, err)
	}
	return nil
}

// Save inserts img, or replaces the existing row for the same path.
func (c *Catalog) Save(ctx context.Context, img *Image) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	txStart := time.Now()
	tx, err := c.db.BeginTx(ctx, nil)
	recordQuery("begin_transaction", txStart, err)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		start := time.Now()
		if err != nil {
			rbErr := tx.Rollback()
			recordQuery("rollback", start, rbErr)
			if rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
			return
		}
		err = tx.Commit()
		recordQuery("commit", start, err)
	}()

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM images WHERE path = ?", img.Path).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = insertImage(ctx, tx, img)
		recordQuery("add_image", txStart, err)
	case err == nil:
		img.ID = id
		err = updateImage(ctx, tx, img)
		recordQuery("update_image", txStart, err)
	}
	if err != nil {
		return fmt.Errorf("save image %s: %w", img.Path, err)
	}
	return nil
}

// Get returns the image with id.
func (c *Catalog) Get(ctx context.Context, id int64) (img *Image, err error) {
	start := time.Now()
	defer func() { recordQuery("get_image", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return scanImage(c.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id = ?", id))
}

// GetByPath returns the image stored for an absolute source path.
func (c *Catalog) GetByPath(ctx context.Context, path string) (img *Image, err error) {
	start := time.Now()
	defer func() { recordQuery("get_image_by_path", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return scanImage(c.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE path = ?", path))
}

// HasPath reports whether path has been imported. Lookup errors count as
// unknown so the file is retried rather than silently skipped.
func (c *Catalog) HasPath(ctx context.Context, path string) bool {
	start := time.Now()
	var err error
	defer func() { recordQuery("has_path", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var exists bool
	err = c.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM images WHERE path = ?)", path).Scan(&exists)
	return err == nil && exists
}

// KnownPaths adapts HasPath to the importer's predicate.
func (c *Catalog) KnownPaths(ctx context.Context) func(string) bool {
	return func(path string) bool {
		return c.HasPath(ctx, path)
	}
}

// Delete removes the image with id.
func (c *Catalog) Delete(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_image", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts images by status and ecosystem.
func (c *Catalog) Stats(ctx context.Context) (stats metrics.Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats = metrics.Stats{
		ByStatus:    make(map[string]int),
		ByEcosystem: make(map[string]int),
	}

	rows, err := c.db.QueryContext(ctx, "SELECT status, ecosystem, COUNT(*) FROM images GROUP BY status, ecosystem")
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status, eco string
		var n int
		if err = rows.Scan(&status, &eco, &n); err != nil {
			return stats, err
		}
		stats.TotalImages += n
		stats.ByStatus[status] += n
		stats.ByEcosystem[eco] += n
	}
	err = rows.Err()
	return stats, err
}

// GetStats implements metrics.StatsProvider.
func (c *Catalog) GetStats() metrics.Stats {
	stats, err := c.Stats(context.Background())
	if err != nil {
		log.Warn("Failed to collect catalog stats: %v", err)
	}
	return stats
}

// ListOptions filters and pages List.
type ListOptions struct {
	Status    importer.Status
	Ecosystem string
	Limit     int
	Offset    int
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// List returns images ordered by relative path.
func (c *Catalog) List(ctx context.Context, opts ListOptions) (images []*Image, err error) {
	start := time.Now()
	defer func() { recordQuery("list_images", start, err) }()

	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	query := "SELECT " + imageColumns + " FROM images WHERE 1=1"
	var args []any
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.Ecosystem != "" {
		query += " AND ecosystem = ?"
		args = append(args, opts.Ecosystem)
	}
	query += " ORDER BY relative_path LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images = []*Image{}
	for rows.Next() {
		img, scanErr := scanImage(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		images = append(images, img)
	}
	err = rows.Err()
	return images, err
}
