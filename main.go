package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"folio/internal/auth"
	"folio/internal/covers"
	"folio/internal/database"
	"folio/internal/filesystem"
	"folio/internal/handlers"
	"folio/internal/logging"
	"folio/internal/memory"
	"folio/internal/metrics"
	"folio/internal/middleware"
	"folio/internal/mirror"
	"folio/internal/scanner"
	"folio/internal/startup"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Configure GOMEMLIMIT from the container limit before anything allocates
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	ctx := context.Background()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Clean up expired sessions periodically
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		for range ticker.C {
			if n, err := db.CleanExpiredSessions(context.Background()); err != nil {
				logging.Warn("Session cleanup failed: %v", err)
			} else if n > 0 {
				logging.Info("Removed %d expired sessions", n)
			}
		}
	}()

	if err := registerLibraryDir(ctx, db, config); err != nil {
		startup.LogFatal("Failed to register library directory: %v", err)
	}

	// Initialize cover cache; vips is optional, thumbnails fall back to
	// the pure-Go resize path without it
	covers.InitVips()
	coverCache, err := covers.New(config.DataDir, config.ThumbnailSize, db)
	if err != nil {
		startup.LogFatal("Failed to initialize cover cache: %v", err)
	}

	// Memory backpressure for extraction workers
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Prime the catalog mirror from the database so feeds serve instantly
	// while the first scan runs
	catalog := mirror.New()
	if books, err := db.GetAllBooks(ctx); err != nil {
		logging.Warn("Failed to load catalog from database, waiting for scan: %v", err)
	} else {
		catalog.Rebuild(books)
	}

	// Initialize scanner
	startup.LogScannerInit(config.ScanInterval, config.ScanWorkers)
	scan := scanner.New(db, coverCache, catalog, monitor, scanner.Config{
		Interval: config.ScanInterval,
		Workers:  config.ScanWorkers,
	})
	scan.Start()
	startup.LogScannerStarted()

	authService := auth.New(db, config.SessionTTL, config.Registration)

	// Initialize handlers
	h := handlers.New(db, catalog, scan, coverCache, authService, config)

	// Catalog gauges refresh on a fixed cadence
	collector := metrics.NewCollector(&catalogStats{catalog: catalog, db: db}, time.Minute)
	collector.Start()

	// Metrics on a dedicated port so the public surface never exposes them
	if config.MetricsEnabled {
		go serveMetrics(config.MetricsPort, h)
	}

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply metrics middleware
	measured := middleware.Metrics(middleware.DefaultMetricsConfig())(router)

	// Apply compression middleware
	compressed := middleware.Compression(middleware.DefaultCompressionConfig())(measured)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(compressed)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, scan, collector, monitor)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// registerLibraryDir creates a library for LIBRARY_DIR when the database
// has none, so a single-directory deployment needs no CLI step. Existing
// libraries always win over the environment.
func registerLibraryDir(ctx context.Context, db *database.Database, config *startup.Config) error {
	libs, err := db.ListLibraries(ctx)
	if err != nil {
		return err
	}
	if len(libs) > 0 {
		return nil
	}

	if config.LibraryDir == "" {
		logging.Warn("No libraries configured. Add one with: folioctl library add <name> <path>")
		return nil
	}

	lib := &database.Library{
		Name:     "default",
		Path:     config.LibraryDir,
		IsPublic: true,
	}
	if err := db.CreateLibrary(ctx, lib); err != nil {
		return err
	}
	logging.Info("Registered library %q at %s", lib.Name, lib.Path)
	return nil
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Landing page and OpenSearch description
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/opensearch.xml", h.OpenSearch).Methods("GET")

	// OPDS feeds; e-reader clients fetch these anonymously
	r.HandleFunc("/catalog", h.CatalogRoot).Methods("GET")
	catalog := r.PathPrefix("/catalog").Subrouter()
	catalog.HandleFunc("/recent", h.CatalogRecent).Methods("GET")
	catalog.HandleFunc("/all", h.CatalogAll).Methods("GET")
	catalog.HandleFunc("/search", h.CatalogSearch).Methods("GET")

	// Book metadata and content
	books := r.PathPrefix("/books").Subrouter()
	books.HandleFunc("/{id}", h.GetBook).Methods("GET")
	books.HandleFunc("/{id}/download", h.DownloadBook).Methods("GET")
	books.HandleFunc("/{id}/download.{ext}", h.DownloadBook).Methods("GET")
	books.HandleFunc("/{id}/cover", h.GetCover).Methods("GET")
	books.HandleFunc("/{id}/thumbnail", h.GetThumbnail).Methods("GET")
	books.HandleFunc("/{id}/placeholder", h.GetPlaceholder).Methods("GET")

	// Auth routes
	authRoutes := r.PathPrefix("/api/auth").Subrouter()
	authRoutes.HandleFunc("/login", h.Login).Methods("POST")
	authRoutes.HandleFunc("/register", h.Register).Methods("POST")
	authRoutes.HandleFunc("/logout", h.Logout).Methods("POST")
	authRoutes.Handle("/me", h.RequireAuth(http.HandlerFunc(h.Me))).Methods("GET")

	// Reading-state sync routes, bearer-token scoped
	sync := r.PathPrefix("/api/sync").Subrouter()
	sync.Use(h.RequireAuth)
	sync.HandleFunc("/progress/{book_id}", h.GetProgress).Methods("GET")
	sync.HandleFunc("/progress/{book_id}", h.UpdateProgress).Methods("PUT")
	sync.HandleFunc("/book/{book_id}/highlights", h.GetHighlights).Methods("GET")
	sync.HandleFunc("/book/{book_id}/highlights", h.AddHighlight).Methods("POST")
	sync.HandleFunc("/highlight/{id}", h.DeleteHighlight).Methods("DELETE")
	sync.HandleFunc("/book/{book_id}/bookmarks", h.GetBookmarks).Methods("GET")
	sync.HandleFunc("/book/{book_id}/bookmarks", h.AddBookmark).Methods("POST")
	sync.HandleFunc("/bookmark/{id}", h.DeleteBookmark).Methods("DELETE")
	sync.HandleFunc("/sdr", h.ListSdr).Methods("GET")
	sync.HandleFunc("/sdr/{book_id}", h.DownloadSdr).Methods("GET")
	sync.HandleFunc("/sdr/{book_id}", h.UploadSdr).Methods("PUT")
	sync.HandleFunc("/sdr/{book_id}/info", h.GetSdrInfo).Methods("GET")
	sync.HandleFunc("/devices", h.GetDevices).Methods("GET")

	// Catalog management API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scan", h.TriggerScan).Methods("POST")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/library", h.GetLibrary).Methods("GET")

	return r
}

// catalogStats feeds the metrics collector from the mirror and the
// libraries table.
type catalogStats struct {
	catalog *mirror.Mirror
	db      *database.Database
}

func (c *catalogStats) GetStats() metrics.Stats {
	libraries := 0
	if libs, err := c.db.ListLibraries(context.Background()); err == nil {
		libraries = len(libs)
	}

	counts := make(map[string]int)
	for format, n := range c.catalog.FormatCounts() {
		counts[string(format)] = n
	}

	return metrics.Stats{
		TotalBooks:     c.catalog.Count(),
		TotalLibraries: libraries,
		TotalSizeBytes: c.catalog.TotalSize(),
		FormatCounts:   counts,
	}
}

// serveMetrics runs the Prometheus endpoint on its own listener.
func serveMetrics(port string, h *handlers.Handlers) {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logging.Info("Metrics server listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, scan *scanner.Scanner, collector *metrics.Collector, monitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping scanner")
	scan.Stop()
	startup.LogShutdownStepComplete("Scanner stopped")

	startup.LogShutdownStep("Stopping background collectors")
	collector.Stop()
	monitor.Stop()
	startup.LogShutdownStepComplete("Background collectors stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	covers.ShutdownVips()

	startup.LogShutdownComplete()
}
