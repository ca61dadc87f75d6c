package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"folio/internal/auth"
	"folio/internal/covers"
	"folio/internal/database"
	"folio/internal/handlers"
	"folio/internal/mirror"
	"folio/internal/scanner"
	"folio/internal/startup"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "folio.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestHandlers(t *testing.T) (*handlers.Handlers, *database.Database, *mirror.Mirror) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(context.Background(), filepath.Join(dir, "folio.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cache, err := covers.New(dir, 200, db)
	if err != nil {
		t.Fatalf("creating cover cache: %v", err)
	}

	m := mirror.New()
	m.Rebuild(nil)
	sc := scanner.New(db, cache, m, nil, scanner.Config{Workers: 1})
	as := auth.New(db, 24*time.Hour, true)
	cfg := &startup.Config{CatalogTitle: "Test", DataDir: dir}

	return handlers.New(db, m, sc, cache, as, cfg), db, m
}

func TestSetupRouter(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	router := setupRouter(h)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{"index", "GET", "/", http.StatusOK},
		{"health", "GET", "/health", http.StatusOK},
		{"healthz alias", "GET", "/healthz", http.StatusOK},
		{"liveness head", "HEAD", "/livez", http.StatusOK},
		{"version", "GET", "/version", http.StatusOK},
		{"opensearch", "GET", "/opensearch.xml", http.StatusOK},
		{"catalog root", "GET", "/catalog", http.StatusOK},
		{"catalog recent", "GET", "/catalog/recent", http.StatusOK},
		{"catalog all", "GET", "/catalog/all", http.StatusOK},
		{"catalog search", "GET", "/catalog/search?q=x", http.StatusOK},
		{"unknown book", "GET", "/books/no-such-id", http.StatusNotFound},
		{"unknown book cover", "GET", "/books/no-such-id/cover", http.StatusNotFound},
		{"stats", "GET", "/api/stats", http.StatusOK},
		{"library listing", "GET", "/api/library", http.StatusOK},
		{"scan trigger", "POST", "/api/scan", http.StatusOK},
		{"sync requires token", "GET", "/api/sync/devices", http.StatusUnauthorized},
		{"me requires token", "GET", "/api/auth/me", http.StatusUnauthorized},
		{"logout without token", "POST", "/api/auth/logout", http.StatusOK},
		{"metrics not public", "GET", "/metrics", http.StatusNotFound},
		{"catalog rejects POST", "POST", "/catalog", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.target, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestSetupRouterWalkable(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	router := setupRouter(h)

	routes, err := startup.GetRoutes(router)
	if err != nil {
		t.Fatalf("walking routes: %v", err)
	}
	if len(routes) == 0 {
		t.Fatal("expected routes from the router walk")
	}

	seen := make(map[string]bool, len(routes))
	for _, route := range routes {
		seen[route.Path] = true
	}
	for _, want := range []string{"/catalog", "/api/sync/progress/{book_id}", "/books/{id}/download"} {
		if !seen[want] {
			t.Errorf("route %s missing from walk", want)
		}
	}
}

func TestRegisterLibraryDir(t *testing.T) {
	ctx := context.Background()

	t.Run("creates default library", func(t *testing.T) {
		db := newTestDatabase(t)
		dir := t.TempDir()

		if err := registerLibraryDir(ctx, db, &startup.Config{LibraryDir: dir}); err != nil {
			t.Fatalf("registerLibraryDir: %v", err)
		}

		libs, err := db.ListLibraries(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(libs) != 1 {
			t.Fatalf("got %d libraries, want 1", len(libs))
		}
		if libs[0].Name != "default" || libs[0].Path != dir || !libs[0].IsPublic {
			t.Errorf("unexpected library: %+v", libs[0])
		}
	})

	t.Run("existing libraries win", func(t *testing.T) {
		db := newTestDatabase(t)
		if err := db.CreateLibrary(ctx, &database.Library{Name: "shelf", Path: t.TempDir()}); err != nil {
			t.Fatal(err)
		}

		if err := registerLibraryDir(ctx, db, &startup.Config{LibraryDir: t.TempDir()}); err != nil {
			t.Fatalf("registerLibraryDir: %v", err)
		}

		libs, err := db.ListLibraries(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(libs) != 1 || libs[0].Name != "shelf" {
			t.Errorf("expected only the existing library, got %+v", libs)
		}
	})

	t.Run("unset is a no-op", func(t *testing.T) {
		db := newTestDatabase(t)

		if err := registerLibraryDir(ctx, db, &startup.Config{}); err != nil {
			t.Fatalf("registerLibraryDir: %v", err)
		}

		libs, err := db.ListLibraries(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(libs) != 0 {
			t.Errorf("expected no libraries, got %+v", libs)
		}
	})
}

func TestCatalogStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	if err := db.CreateLibrary(ctx, &database.Library{Name: "shelf", Path: t.TempDir()}); err != nil {
		t.Fatal(err)
	}

	m := mirror.New()
	m.Rebuild([]database.Book{
		{ID: "a", Title: "Alpha", Format: "cbz", FileSize: 100},
		{ID: "b", Title: "Beta", Format: "epub", FileSize: 250},
		{ID: "c", Title: "Gamma", Format: "cbz", FileSize: 50},
	})

	stats := (&catalogStats{catalog: m, db: db}).GetStats()

	if stats.TotalBooks != 3 {
		t.Errorf("TotalBooks = %d, want 3", stats.TotalBooks)
	}
	if stats.TotalLibraries != 1 {
		t.Errorf("TotalLibraries = %d, want 1", stats.TotalLibraries)
	}
	if stats.TotalSizeBytes != 400 {
		t.Errorf("TotalSizeBytes = %d, want 400", stats.TotalSizeBytes)
	}
	if stats.FormatCounts["cbz"] != 2 || stats.FormatCounts["epub"] != 1 {
		t.Errorf("FormatCounts = %v", stats.FormatCounts)
	}
}

func TestMetricsHandlerOutput(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	h.MetricsHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "go_goroutines") {
		t.Errorf("metrics output missing runtime collectors:\n%.200s", body)
	}
}
