// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - DATA_DIR: Directory holding folio.db, covers/ and thumbnails/ (default: ./data)
//   - LIBRARY_DIR: Book directory registered as a library at startup (default: unset)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - SCAN_INTERVAL: Periodic library scan interval as Go duration, 0 disables (default: 5m)
//   - SCAN_WORKERS: Extraction workers per scan, 0 derives from GOMAXPROCS (default: 1)
//   - THUMBNAIL_SIZE: Thumbnail width in pixels (default: 200)
//   - SESSION_DAYS: Login session lifetime in days (default: 30)
//   - REGISTRATION: open or closed self-registration (default: open)
//   - CATALOG_TITLE: Title shown in OPDS feeds and the index page (default: Folio)
//   - BASE_URL: Absolute URL prefix for feed links; derived from the request Host if unset
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: false)
//   - MEMORY_LIMIT: Container memory limit for automatic GOMEMLIMIT configuration
//   - MEMORY_RATIO: Percentage of MEMORY_LIMIT for Go heap (default: 0.85)
//   - GOMEMLIMIT: Direct override for Go's memory limit
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogScannerInit]: Scanner configuration and intervals
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
package startup
