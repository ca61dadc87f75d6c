package mirror

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"folio/internal/database"
	"folio/internal/formats"
	"folio/internal/logging"
	"folio/internal/metrics"
)

// Snapshot is one immutable view of the catalog. The books slice is sorted
// by lowercase title and byID points into that slice. Neither is modified
// after Rebuild returns.
type Snapshot struct {
	books     []database.Book
	byID      map[string]*database.Book
	generated time.Time
}

// Mirror publishes catalog snapshots. The zero value is not usable; call
// New.
type Mirror struct {
	snap atomic.Pointer[Snapshot]
}

// New returns a mirror serving an empty snapshot.
func New() *Mirror {
	m := &Mirror{}
	m.snap.Store(&Snapshot{byID: map[string]*database.Book{}})
	return m
}

// Rebuild replaces the current snapshot with one built from books. The
// input is copied, so the caller may reuse its slice.
func (m *Mirror) Rebuild(books []database.Book) {
	sorted := make([]database.Book, len(books))
	copy(sorted, books)
	sort.Slice(sorted, func(i, j int) bool {
		ti, tj := strings.ToLower(sorted[i].Title), strings.ToLower(sorted[j].Title)
		if ti != tj {
			return ti < tj
		}
		return sorted[i].ID < sorted[j].ID
	})

	byID := make(map[string]*database.Book, len(sorted))
	for i := range sorted {
		byID[sorted[i].ID] = &sorted[i]
	}

	snap := &Snapshot{books: sorted, byID: byID, generated: time.Now()}
	m.snap.Store(snap)

	counts := make(map[formats.Format]int)
	var total int64
	for i := range sorted {
		counts[sorted[i].Format]++
		total += sorted[i].FileSize
	}
	metrics.CatalogBooks.Reset()
	for f, n := range counts {
		metrics.CatalogBooks.WithLabelValues(string(f)).Set(float64(n))
	}
	metrics.CatalogSizeBytes.Set(float64(total))

	logging.Debug("Catalog mirror rebuilt: %d books", len(sorted))
}

// ByID returns one book from the current snapshot.
func (m *Mirror) ByID(id string) (*database.Book, bool) {
	b, ok := m.snap.Load().byID[id]
	return b, ok
}

// All returns every book ordered by lowercase title. The returned slice is
// shared snapshot data; callers must not modify it.
func (m *Mirror) All() []database.Book {
	return m.snap.Load().books
}

// Recent returns up to n books, newest created_at first with the book id
// as ascending tiebreak.
func (m *Mirror) Recent(n int) []database.Book {
	snap := m.snap.Load()
	recent := make([]database.Book, len(snap.books))
	copy(recent, snap.books)
	sort.Slice(recent, func(i, j int) bool {
		if recent[i].CreatedAt != recent[j].CreatedAt {
			return recent[i].CreatedAt > recent[j].CreatedAt
		}
		return recent[i].ID < recent[j].ID
	})
	if n < len(recent) {
		recent = recent[:n]
	}
	return recent
}

// Search returns the books whose title, author or series contains q,
// case-insensitively, in title order.
func (m *Mirror) Search(q string) []database.Book {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}

	snap := m.snap.Load()
	var hits []database.Book
	for _, b := range snap.books {
		if strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.Series), q) {
			hits = append(hits, b)
		}
	}
	return hits
}

// Count returns the number of books in the current snapshot.
func (m *Mirror) Count() int {
	return len(m.snap.Load().books)
}

// TotalSize returns the summed file size of the current snapshot.
func (m *Mirror) TotalSize() int64 {
	var total int64
	for _, b := range m.snap.Load().books {
		total += b.FileSize
	}
	return total
}

// FormatCounts returns how many books each format contributes.
func (m *Mirror) FormatCounts() map[formats.Format]int {
	counts := make(map[formats.Format]int)
	for _, b := range m.snap.Load().books {
		counts[b.Format]++
	}
	return counts
}

// Generated returns when the current snapshot was built. The zero time
// means no scan has published yet.
func (m *Mirror) Generated() time.Time {
	return m.snap.Load().generated
}
