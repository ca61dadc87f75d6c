package scanner

import (
	"context"
	"crypto/md5" //nolint:gosec // change fingerprint, not security
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"folio/internal/database"
	"folio/internal/filesystem"
	"folio/internal/formats"
	"folio/internal/logging"
	"folio/internal/metrics"
	"folio/internal/workers"
)

// defaultWorkerCount sizes the extraction pool, capped to keep NAS
// mounts responsive.
func defaultWorkerCount() int {
	return workers.ForExtraction(8)
}

// BookID derives the stable catalog id for an absolute file path: a v5
// UUID over the URL namespace. The same path always maps to the same id
// across rescans and restarts; a moved file gets a new identity.
func BookID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(path)).String()
}

// fileHash fingerprints a file's identity and change state. Served as
// the download ETag, so it must change whenever size or mtime does.
func fileHash(path string, size, mtime int64) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s%d%d", path, size, mtime))) //nolint:gosec
	return fmt.Sprintf("%x", sum)
}

// fileJob is one new or changed file awaiting metadata extraction.
type fileJob struct {
	path      string
	libraryID string
	format    formats.Format
	size      int64
	mtime     int64
}

// fileResult is the outcome of one extraction.
type fileResult struct {
	id      string
	path    string
	book    *database.Book
	cover   []byte
	err     error
	skipped bool
}

// walkResult is the outcome of the candidate-collection phase.
type walkResult struct {
	// jobs are the new or changed files needing extraction.
	jobs []fileJob
	// presentIDs are the unchanged books confirmed still on disk.
	presentIDs []string
	unchanged  int
	// damaged records walk errors; a damaged walk must not prune.
	damaged bool
}

// walkLibrary walks lib.Path and splits known-format files into
// unchanged (size and mtime both match the stored row) and extraction
// candidates. Hidden entries are skipped. Per-entry errors are logged
// and mark the walk damaged rather than aborting it; only a failure of
// the walk itself is returned.
func (s *Scanner) walkLibrary(ctx context.Context, lib *database.Library, known map[string]database.FileStamp) (*walkResult, error) {
	res := &walkResult{}

	err := filepath.WalkDir(lib.Path, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			logging.Warn("Error accessing %s: %v", path, err)
			res.damaged = true
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") && path != lib.Path {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		format, ok := formats.FromPath(path)
		if !ok {
			return nil
		}

		info, err := filesystem.StatWithRetry(path, s.retry)
		if err != nil {
			logging.Warn("Stat failed for %s: %v", path, err)
			res.damaged = true
			// Keep whatever row exists; an unreadable file is not a
			// removed one.
			if stamp, ok := known[path]; ok {
				res.presentIDs = append(res.presentIDs, stamp.ID)
			}
			return nil
		}

		stamp, ok := known[path]
		if ok && stamp.Size == info.Size() && stamp.Mtime == info.ModTime().Unix() {
			res.presentIDs = append(res.presentIDs, stamp.ID)
			res.unchanged++
			return nil
		}

		res.jobs = append(res.jobs, fileJob{
			path:      path,
			libraryID: lib.ID,
			format:    format,
			size:      info.Size(),
			mtime:     info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return res, nil
}

// extractResult is the outcome of the extraction phase.
type extractResult struct {
	// presentIDs covers every processed candidate, including failed
	// extractions: a transient parse failure must not prune the row.
	presentIDs []string
	extracted  int
	failed     int
}

// extractAll runs the worker pool over the candidate list, saving each
// successful extraction and caching its cover eagerly. The pool is torn
// down before returning.
func (s *Scanner) extractAll(ctx context.Context, lib *database.Library, jobs []fileJob) extractResult {
	var res extractResult
	if len(jobs) == 0 {
		return res
	}

	n := s.config.Workers
	if n <= 0 {
		n = defaultWorkerCount()
	}
	if n > len(jobs) {
		n = len(jobs)
	}
	logging.Info("Extracting metadata from %d file(s) in %q with %d worker(s)", len(jobs), lib.Name, n)

	jobCh := make(chan fileJob)
	resCh := make(chan fileResult, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go s.worker(ctx, jobCh, resCh, &wg)
	}

	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	total := len(jobs)
	processed := 0
	for processed < total {
		var result fileResult
		select {
		case result = <-resCh:
		case <-ctx.Done():
			// Workers stop sending once cancelled; do not wait for
			// results that will never come.
			wg.Wait()
			return res
		}
		processed++

		switch {
		case result.skipped:
			// Cancelled before processing; neither present nor failed.
		case result.err != nil:
			res.failed++
			res.presentIDs = append(res.presentIDs, result.id)
			logging.Warn("Metadata extraction failed for %s: %v", result.path, result.err)
		default:
			s.saveResult(ctx, result, &res)
		}

		if processed%100 == 0 {
			logging.Info("Scan progress: %d/%d files (%.0f%%)",
				processed, total, float64(processed)/float64(total)*100)
		}
	}

	wg.Wait()
	return res
}

// saveResult caches the cover and persists the book row for one
// successful extraction.
func (s *Scanner) saveResult(ctx context.Context, result fileResult, res *extractResult) {
	book := result.book
	if len(result.cover) > 0 {
		if err := s.covers.Put(book.ID, result.cover); err != nil {
			// The lazy path will retry on first request.
			logging.Warn("Caching cover for %s: %v", result.path, err)
		} else {
			book.CoverCached = true
		}
	}

	if err := s.db.SaveBook(ctx, book); err != nil {
		res.failed++
		res.presentIDs = append(res.presentIDs, result.id)
		logging.Error("Saving book for %s: %v", result.path, err)
		return
	}
	res.extracted++
	res.presentIDs = append(res.presentIDs, result.id)
}

// worker drains the job channel. After cancellation remaining jobs are
// acknowledged as skipped so the collector's accounting stays exact.
func (s *Scanner) worker(ctx context.Context, jobCh <-chan fileJob, resCh chan<- fileResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobCh {
		if ctx.Err() != nil {
			select {
			case resCh <- fileResult{id: BookID(job.path), path: job.path, skipped: true}:
			default:
			}
			continue
		}

		if s.monitor != nil {
			s.monitor.WaitIfPaused()
		}

		select {
		case resCh <- s.processFile(ctx, job):
		case <-ctx.Done():
			return
		}
	}
}

// processFile extracts metadata for one candidate and builds its row.
func (s *Scanner) processFile(ctx context.Context, job fileJob) fileResult {
	id := BookID(job.path)

	start := time.Now()
	md, err := formats.HandlerFor(job.format).Extract(ctx, job.path)
	metrics.ExtractionDuration.WithLabelValues(string(job.format)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues(string(job.format), "error").Inc()
		return fileResult{id: id, path: job.path, err: err}
	}
	metrics.ExtractionsTotal.WithLabelValues(string(job.format), "success").Inc()

	title := md.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(job.path), filepath.Ext(job.path))
	}

	book := &database.Book{
		ID:          id,
		LibraryID:   job.libraryID,
		FileHash:    fileHash(job.path, job.size, job.mtime),
		Title:       title,
		Authors:     md.Authors,
		Description: md.Description,
		Publisher:   md.Publisher,
		Published:   md.Published,
		Language:    md.Language,
		ISBN:        md.ISBN,
		Series:      md.Series,
		SeriesIndex: md.SeriesIndex,
		Tags:        md.Tags,
		Path:        job.path,
		Format:      job.format,
		FileSize:    job.size,
		Mtime:       job.mtime,
		PageCount:   md.PageCount,
	}
	return fileResult{id: id, path: job.path, book: book, cover: md.Cover}
}
