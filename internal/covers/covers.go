package covers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"folio/internal/apperr"
	"folio/internal/database"
	"folio/internal/formats"
	"folio/internal/logging"
	"folio/internal/metrics"
)

// Cache is the lazy cover and thumbnail store. Covers are extracted from
// book files on first request and written to disk as PNG; thumbnails are
// derived from cached covers on first request. Cached entries are never
// invalidated: a book's cover is assumed stable for the life of the file.
type Cache struct {
	coverDir string
	thumbDir string
	size     int
	db       *database.Database

	// mu guards locks; each entry serializes one expensive render so
	// concurrent requests for the same book do the work once.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the cover cache rooted under dataDir, creating the covers/
// and thumbnails/ directories if needed. size is the thumbnail width in
// pixels. db may be nil in tests; when set, lazy extraction records
// cover availability on the book row.
func New(dataDir string, size int, db *database.Database) (*Cache, error) {
	c := &Cache{
		coverDir: filepath.Join(dataDir, "covers"),
		thumbDir: filepath.Join(dataDir, "thumbnails"),
		size:     size,
		db:       db,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, dir := range []string{c.coverDir, c.thumbDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: creating %s: %v", apperr.ErrIO, dir, err)
		}
	}
	return c, nil
}

func (c *Cache) coverPath(id string) string {
	return filepath.Join(c.coverDir, id+".png")
}

func (c *Cache) thumbPath(id string) string {
	return filepath.Join(c.thumbDir, fmt.Sprintf("%s_%d.png", id, c.size))
}

// lock acquires the per-key mutex, creating it on first use, and returns
// the unlock func. Entries are kept for the life of the process; the map
// is bounded by the catalog size.
func (c *Cache) lock(key string) func() {
	c.mu.Lock()
	m, ok := c.locks[key]
	if !ok {
		m = &sync.Mutex{}
		c.locks[key] = m
	}
	c.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Get returns the PNG cover for book, extracting and caching it on first
// request. The disk cache is authoritative: a file present under covers/
// is served even if the book row does not have it marked yet. Returns
// apperr.ErrNotFound when the book has no embedded cover; callers
// substitute a generated default.
func (c *Cache) Get(ctx context.Context, book *database.Book) ([]byte, error) {
	p := c.coverPath(book.ID)
	if data, err := os.ReadFile(p); err == nil {
		metrics.CoverCacheHits.Inc()
		return data, nil
	}
	metrics.CoverCacheMisses.Inc()

	unlock := c.lock("cover:" + book.ID)
	defer unlock()

	// Another request may have rendered it while we waited on the lock.
	if data, err := os.ReadFile(p); err == nil {
		return data, nil
	}

	md, err := formats.HandlerFor(book.Format).Extract(ctx, book.Path)
	if err != nil {
		logging.Debug("Cover extraction failed for %s: %v", book.Path, err)
		return nil, fmt.Errorf("%w: cover for book %s", apperr.ErrNotFound, book.ID)
	}
	if len(md.Cover) == 0 {
		return nil, fmt.Errorf("%w: no cover in %s", apperr.ErrNotFound, filepath.Base(book.Path))
	}

	if err := c.Put(book.ID, md.Cover); err != nil {
		return nil, err
	}
	if c.db != nil {
		if err := c.db.SetCoverCached(ctx, book.ID, true); err != nil {
			logging.Warn("Failed to mark cover cached for %s: %v", book.ID, err)
		}
	}
	return md.Cover, nil
}

// Put writes cover bytes for id directly into the cache. The scanner uses
// it to store covers it already extracted during indexing.
func (c *Cache) Put(id string, data []byte) error {
	if err := os.WriteFile(c.coverPath(id), data, 0644); err != nil {
		return fmt.Errorf("%w: caching cover %s: %v", apperr.ErrIO, id, err)
	}
	return nil
}

// Thumbnail returns a small PNG rendition of the book cover, generating
// and caching it on first request. Books without a cover return
// apperr.ErrNotFound.
func (c *Cache) Thumbnail(ctx context.Context, book *database.Book) ([]byte, error) {
	p := c.thumbPath(book.ID)
	if data, err := os.ReadFile(p); err == nil {
		metrics.CoverCacheHits.Inc()
		return data, nil
	}
	metrics.CoverCacheMisses.Inc()

	unlock := c.lock("thumb:" + book.ID)
	defer unlock()

	if data, err := os.ReadFile(p); err == nil {
		return data, nil
	}

	cover, err := c.Get(ctx, book)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := c.renderThumbnail(cover)
	metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("generating thumbnail for %s: %w", book.ID, err)
	}
	metrics.ThumbnailGenerationsTotal.WithLabelValues("success").Inc()

	if err := os.WriteFile(p, data, 0644); err != nil {
		// Serve the rendered bytes anyway; only the cache write failed.
		logging.Warn("Failed to cache thumbnail for %s: %v", book.ID, err)
	}
	return data, nil
}

// renderThumbnail shrinks cover bytes to fit within size x size*2,
// preserving aspect ratio. Portrait covers at a 1:2 bound keep their full
// width. Prefers libvips when initialized, falling back to the pure-Go
// path on any vips failure.
func (c *Cache) renderThumbnail(cover []byte) ([]byte, error) {
	if IsVipsAvailable() {
		data, err := vipsThumbnail(cover, c.size, c.size*2)
		if err == nil {
			return data, nil
		}
		logging.Debug("vips thumbnail failed, using fallback: %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(cover), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding cover: %w", err)
	}
	thumb := imaging.Fit(img, c.size, c.size*2, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// UpdateMetrics refreshes the cover cache gauges from the covers
// directory. Called from the periodic metrics updater.
func (c *Cache) UpdateMetrics() {
	var count int
	var size int64
	entries, err := os.ReadDir(c.coverDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.IsDir() {
			continue
		}
		count++
		size += info.Size()
	}
	metrics.CoverCacheCount.Set(float64(count))
	metrics.CoverCacheSize.Set(float64(size))
}
