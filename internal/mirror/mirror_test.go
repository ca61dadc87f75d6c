package mirror

import (
	"strconv"
	"sync"
	"testing"

	"folio/internal/database"
)

func testBooks() []database.Book {
	return []database.Book{
		{ID: "b3", Title: "zebra crossing", Author: "Ann Writer", Format: "epub", FileSize: 300, CreatedAt: 30},
		{ID: "b1", Title: "Apple Days", Author: "Bob Scribe", Series: "Orchard", Format: "epub", FileSize: 100, CreatedAt: 10},
		{ID: "b2", Title: "mango season", Author: "Cara Quill", Format: "cbz", FileSize: 200, CreatedAt: 20},
	}
}

func TestEmptyMirror(t *testing.T) {
	m := New()

	if m.Count() != 0 {
		t.Errorf("Count = %d, want 0", m.Count())
	}
	if got := m.All(); len(got) != 0 {
		t.Errorf("All returned %d books, want 0", len(got))
	}
	if _, ok := m.ByID("anything"); ok {
		t.Error("ByID hit on empty mirror")
	}
	if got := m.Recent(5); len(got) != 0 {
		t.Errorf("Recent returned %d, want 0", len(got))
	}
	if got := m.Search("q"); len(got) != 0 {
		t.Errorf("Search returned %d, want 0", len(got))
	}
	if !m.Generated().IsZero() {
		t.Error("Generated non-zero before any rebuild")
	}
}

func TestRebuildOrdersByTitle(t *testing.T) {
	m := New()
	m.Rebuild(testBooks())

	all := m.All()
	want := []string{"Apple Days", "mango season", "zebra crossing"}
	if len(all) != len(want) {
		t.Fatalf("got %d books, want %d", len(all), len(want))
	}
	for i, title := range want {
		if all[i].Title != title {
			t.Errorf("all[%d].Title = %q, want %q", i, all[i].Title, title)
		}
	}
	if m.Generated().IsZero() {
		t.Error("Generated still zero after rebuild")
	}
}

func TestByID(t *testing.T) {
	m := New()
	m.Rebuild(testBooks())

	b, ok := m.ByID("b2")
	if !ok {
		t.Fatal("ByID(b2) miss")
	}
	if b.Title != "mango season" {
		t.Errorf("Title = %q, want mango season", b.Title)
	}
	if _, ok := m.ByID("nope"); ok {
		t.Error("ByID hit for unknown id")
	}
}

func TestRecent(t *testing.T) {
	m := New()
	books := testBooks()
	// A tie on created_at resolves by ascending id.
	books = append(books, database.Book{ID: "b0", Title: "tied", CreatedAt: 30, Format: "pdf"})
	m.Rebuild(books)

	recent := m.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("got %d, want 3", len(recent))
	}
	wantIDs := []string{"b0", "b3", "b2"}
	for i, id := range wantIDs {
		if recent[i].ID != id {
			t.Errorf("recent[%d] = %q, want %q", i, recent[i].ID, id)
		}
	}

	if got := m.Recent(100); len(got) != 4 {
		t.Errorf("Recent(100) returned %d, want all 4", len(got))
	}
}

func TestSearch(t *testing.T) {
	m := New()
	m.Rebuild(testBooks())

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "title substring", query: "mango", want: []string{"b2"}},
		{name: "case-insensitive title", query: "APPLE", want: []string{"b1"}},
		{name: "author", query: "quill", want: []string{"b2"}},
		{name: "series", query: "orchard", want: []string{"b1"}},
		{name: "whitespace trimmed", query: "  zebra  ", want: []string{"b3"}},
		{name: "no hits", query: "durian", want: nil},
		{name: "empty query", query: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Search(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d hits, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("hit[%d] = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestAggregates(t *testing.T) {
	m := New()
	m.Rebuild(testBooks())

	if m.Count() != 3 {
		t.Errorf("Count = %d, want 3", m.Count())
	}
	if got := m.TotalSize(); got != 600 {
		t.Errorf("TotalSize = %d, want 600", got)
	}
	counts := m.FormatCounts()
	if counts["epub"] != 2 || counts["cbz"] != 1 {
		t.Errorf("FormatCounts = %v, want epub:2 cbz:1", counts)
	}
}

func TestRebuildCopiesInput(t *testing.T) {
	m := New()
	books := testBooks()
	m.Rebuild(books)

	// Mutating the caller's slice after the swap must not leak into the
	// published snapshot.
	books[0].Title = "TAMPERED"

	for _, b := range m.All() {
		if b.Title == "TAMPERED" {
			t.Fatal("snapshot shares memory with the caller's slice")
		}
	}
}

func TestConcurrentReadsDuringRebuild(t *testing.T) {
	m := New()
	m.Rebuild(testBooks())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Each read must see a complete snapshot: every book listed
				// is reachable by id.
				for _, b := range m.All() {
					if _, ok := m.ByID(b.ID); !ok {
						// The id lookup may hit a newer snapshot; a miss is
						// only possible if that book was removed, never
						// because the snapshot is torn.
						continue
					}
				}
				_ = m.Count()
				_ = m.Recent(2)
			}
		}()
	}

	for gen := 0; gen < 50; gen++ {
		books := testBooks()
		books = append(books, database.Book{
			ID:    "gen-" + strconv.Itoa(gen),
			Title: "generation " + strconv.Itoa(gen),
		})
		m.Rebuild(books)
	}
	close(stop)
	wg.Wait()

	if m.Count() != 4 {
		t.Errorf("final Count = %d, want 4", m.Count())
	}
}
