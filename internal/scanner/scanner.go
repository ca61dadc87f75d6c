package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"folio/internal/apperr"
	"folio/internal/covers"
	"folio/internal/database"
	"folio/internal/filesystem"
	"folio/internal/logging"
	"folio/internal/memory"
	"folio/internal/metrics"
	"folio/internal/mirror"
)

// Config controls scan scheduling and parallelism.
type Config struct {
	// Interval between periodic full scans. Zero disables the loop;
	// the initial startup scan still runs.
	Interval time.Duration
	// Workers is the extraction pool size. Zero selects a count from
	// the available CPUs.
	Workers int
}

// Scanner indexes library directories into the book store and keeps the
// in-memory catalog mirror current. A single scan runs at a time per
// instance; overlapping triggers are dropped with ErrScanInProgress.
type Scanner struct {
	db      *database.Database
	covers  *covers.Cache
	mirror  *mirror.Mirror
	monitor *memory.Monitor
	config  Config
	retry   filesystem.RetryConfig

	scanning atomic.Bool

	// ctx covers background scans so Stop can cancel one in flight.
	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a scanner. monitor may be nil when memory-pressure
// throttling is not wanted (tests, folioctl).
func New(db *database.Database, coverCache *covers.Cache, m *mirror.Mirror, monitor *memory.Monitor, config Config) *Scanner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scanner{
		db:       db,
		covers:   coverCache,
		mirror:   m,
		monitor:  monitor,
		config:   config,
		retry:    filesystem.DefaultRetryConfig(),
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
}

// Start launches the initial scan in the background and, when an
// interval is configured, the periodic rescan loop. The server comes up
// with an empty catalog and fills in as the first scan lands.
func (s *Scanner) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logging.Info("Starting initial library scan in background...")
		if err := s.ScanAll(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("Initial scan failed: %v", err)
		}
	}()

	if s.config.Interval <= 0 {
		logging.Info("Periodic scanning disabled")
		return
	}

	s.wg.Add(1)
	go s.loop()
}

func (s *Scanner) loop() {
	defer s.wg.Done()

	logging.Info("Periodic scan loop started (interval: %v)", s.config.Interval)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := s.ScanAll(s.ctx)
			if err != nil && !errors.Is(err, apperr.ErrScanInProgress) && !errors.Is(err, context.Canceled) {
				logging.Error("Periodic scan failed: %v", err)
			}
		case <-s.stopChan:
			logging.Info("Periodic scan loop stopped")
			return
		}
	}
}

// Stop terminates the rescan loop, cancels any in-flight background
// scan, and waits for scanner goroutines to exit.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.cancel()
		s.wg.Wait()
	})
}

// IsScanning reports whether a scan is currently running.
func (s *Scanner) IsScanning() bool {
	return s.scanning.Load()
}

// Scan indexes a single library. Returns ErrScanInProgress when another
// scan holds the flag; callers treat that as a dropped trigger.
func (s *Scanner) Scan(ctx context.Context, lib *database.Library) error {
	if !s.scanning.CompareAndSwap(false, true) {
		logging.Info("Scan already in progress, dropping trigger for %q", lib.Name)
		return apperr.ErrScanInProgress
	}
	defer s.scanning.Store(false)

	return s.scanLibrary(ctx, lib)
}

// ScanAll indexes every library sequentially under one scan flag, so a
// full pass cannot interleave with per-library triggers. Library
// failures are logged and do not stop the pass; the last one is
// returned.
func (s *Scanner) ScanAll(ctx context.Context) error {
	if !s.scanning.CompareAndSwap(false, true) {
		logging.Info("Scan already in progress, dropping full-scan trigger")
		return apperr.ErrScanInProgress
	}
	defer s.scanning.Store(false)

	libs, err := s.db.ListLibraries(ctx)
	if err != nil {
		return fmt.Errorf("listing libraries: %w", err)
	}
	if len(libs) == 0 {
		logging.Info("No libraries configured, nothing to scan")
		return s.Refresh(ctx)
	}

	var lastErr error
	for i := range libs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.scanLibrary(ctx, &libs[i]); err != nil {
			logging.Error("Scan of library %q failed: %v", libs[i].Name, err)
			lastErr = err
		}
	}
	return lastErr
}

// TriggerScan starts an asynchronous scan on the scanner's lifetime
// context and returns immediately. An empty library name means all
// libraries. The library lookup runs synchronously so callers can
// report unknown names.
func (s *Scanner) TriggerScan(ctx context.Context, library string) error {
	if s.scanning.Load() {
		return apperr.ErrScanInProgress
	}

	if library == "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			err := s.ScanAll(s.ctx)
			if err != nil && !errors.Is(err, apperr.ErrScanInProgress) && !errors.Is(err, context.Canceled) {
				logging.Error("Triggered scan failed: %v", err)
			}
		}()
		return nil
	}

	lib, err := s.db.GetLibraryByName(ctx, library)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.Scan(s.ctx, lib)
		if err != nil && !errors.Is(err, apperr.ErrScanInProgress) && !errors.Is(err, context.Canceled) {
			logging.Error("Triggered scan of %q failed: %v", lib.Name, err)
		}
	}()
	return nil
}

// scanLibrary runs one full scan of lib. The caller holds the scan flag.
func (s *Scanner) scanLibrary(ctx context.Context, lib *database.Library) error {
	metrics.ScanRunning.Set(1)
	defer metrics.ScanRunning.Set(0)
	metrics.ScanRunsTotal.Inc()

	start := time.Now()
	logging.Info("Scanning library %q at %s", lib.Name, lib.Path)

	known, err := s.db.GetLibraryFileIndex(ctx, lib.ID)
	if err != nil {
		metrics.ScanErrors.Inc()
		return fmt.Errorf("loading file index for %q: %w", lib.Name, err)
	}

	walk, err := s.walkLibrary(ctx, lib, known)
	if err != nil {
		metrics.ScanErrors.Inc()
		return fmt.Errorf("walking %q: %w", lib.Name, err)
	}

	result := s.extractAll(ctx, lib, walk.jobs)
	if ctx.Err() != nil {
		// An interrupted scan never prunes: files not reached would be
		// deleted as missing.
		metrics.ScanErrors.Inc()
		return ctx.Err()
	}

	present := append(walk.presentIDs, result.presentIDs...)
	if walk.damaged {
		logging.Warn("Walk of %q hit errors, skipping prune for this run", lib.Name)
	} else {
		pruned, err := s.db.DeleteBooksNotIn(ctx, lib.ID, present)
		if err != nil {
			metrics.ScanErrors.Inc()
			logging.Error("Pruning missing books from %q: %v", lib.Name, err)
		} else if pruned > 0 {
			metrics.ScanBooksPruned.Add(float64(pruned))
			logging.Info("Pruned %d missing book(s) from %q", pruned, lib.Name)
		}
	}

	if err := s.Refresh(ctx); err != nil {
		metrics.ScanErrors.Inc()
		return fmt.Errorf("refreshing catalog after scan of %q: %w", lib.Name, err)
	}

	duration := time.Since(start)
	metrics.ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScanLastRunDuration.Set(duration.Seconds())
	metrics.ScanFilesProcessed.Add(float64(walk.unchanged + len(walk.jobs)))
	metrics.ScanErrors.Add(float64(result.failed))

	logging.Info("Scan of %q complete: %d candidates, %d unchanged, %d extracted, %d failed in %v",
		lib.Name, walk.unchanged+len(walk.jobs), walk.unchanged, result.extracted, result.failed,
		duration.Round(time.Millisecond))
	return nil
}

// Refresh rebuilds the catalog mirror from the store and swaps it in.
func (s *Scanner) Refresh(ctx context.Context) error {
	books, err := s.db.GetAllBooks(ctx)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	s.mirror.Rebuild(books)

	if libs, err := s.db.ListLibraries(ctx); err == nil {
		metrics.CatalogLibraries.Set(float64(len(libs)))
	}
	return nil
}
