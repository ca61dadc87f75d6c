package handlers

import (
	"errors"
	"net/http"
	"path/filepath"

	"folio/internal/apperr"
	"folio/internal/logging"
)

// StatsResponse summarizes the catalog for the landing page and monitoring.
type StatsResponse struct {
	TotalBooks     int            `json:"total_books"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	TotalSizeHuman string         `json:"total_size_human"`
	FormatCounts   map[string]int `json:"format_counts"`
}

// LibraryEntry is one book in the flat catalog listing sync clients pull.
// Path is relative to the book's library root so clients can mirror the
// directory layout.
type LibraryEntry struct {
	ID          string   `json:"id"`
	Path        string   `json:"path"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Format      string   `json:"format"`
	Size        int64    `json:"size"`
	HasCover    bool     `json:"has_cover"`
	Series      string   `json:"series,omitempty"`
	SeriesIndex float64  `json:"series_index,omitempty"`
	Description string   `json:"description,omitempty"`
}

// LibraryResponse wraps the catalog listing.
type LibraryResponse struct {
	Books []LibraryEntry `json:"books"`
	Total int            `json:"total"`
}

// TriggerScan starts a scan of every library in the background. A trigger
// that lands while a scan is already running reports that instead of
// failing, since the caller's goal state is the same either way.
func (h *Handlers) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if err := h.scanner.TriggerScan(r.Context(), ""); err != nil {
		if errors.Is(err, apperr.ErrScanInProgress) {
			writeJSONStatus(w, "already_running")
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "started")
}

// GetStats reports catalog totals from the in-memory mirror.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	total := h.mirror.TotalSize()

	counts := make(map[string]int)
	for format, n := range h.mirror.FormatCounts() {
		counts[string(format)] = n
	}

	writeJSON(w, StatsResponse{
		TotalBooks:     h.mirror.Count(),
		TotalSizeBytes: total,
		TotalSizeHuman: formatSize(total),
		FormatCounts:   counts,
	})
}

// GetLibrary returns the full catalog with library-relative paths. Books
// whose library row has gone missing are skipped rather than reported
// with an absolute path.
func (h *Handlers) GetLibrary(w http.ResponseWriter, r *http.Request) {
	libraries, err := h.db.ListLibraries(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	roots := make(map[string]string, len(libraries))
	for _, lib := range libraries {
		roots[lib.ID] = lib.Path
	}

	books := h.mirror.All()
	entries := make([]LibraryEntry, 0, len(books))
	for i := range books {
		book := &books[i]
		root, ok := roots[book.LibraryID]
		if !ok {
			continue
		}
		rel, err := filepath.Rel(root, book.Path)
		if err != nil {
			logging.Debug("Relativizing %s against %s: %v", book.Path, root, err)
			continue
		}

		authors := book.Authors
		if authors == nil {
			authors = []string{}
		}
		entries = append(entries, LibraryEntry{
			ID:          book.ID,
			Path:        filepath.ToSlash(rel),
			Title:       book.Title,
			Authors:     authors,
			Format:      string(book.Format),
			Size:        book.FileSize,
			HasCover:    book.CoverCached,
			Series:      book.Series,
			SeriesIndex: book.SeriesIndex,
			Description: book.Description,
		})
	}

	writeJSON(w, LibraryResponse{Books: entries, Total: len(entries)})
}
