// Package metrics provides Prometheus instrumentation for the folio server.
//
// This package defines and exposes the metrics scraped by Prometheus to
// monitor the health, performance, and behavior of the application. All
// metrics are prefixed with "folio_" to avoid naming collisions.
//
// # Metric Categories
//
// ## HTTP Metrics
//
// Track request performance and error rates:
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Database Metrics
//
// Monitor store query performance and storage:
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBConnectionsOpen: Gauge of open database connections
//   - DBSizeBytes: Gauge of database file sizes (main, WAL, SHM)
//
// ## Scan Metrics
//
// Track library scan runs:
//   - ScanRunsTotal, ScanLastRunTimestamp, ScanLastRunDuration
//   - ScanFilesProcessed, ScanErrors, ScanBooksPruned
//   - ScanRunning: Gauge indicating whether a scan is in flight
//
// ## Extraction Metrics
//
// Per-format metadata extraction counters and durations.
//
// ## Cover Metrics
//
// Cover cache hit/miss/size counters and thumbnail generation stats.
//
// ## Catalog Gauges
//
// Book counts by format, library count, and total catalog size, refreshed
// periodically by the Collector.
//
// ## Sync, Auth, and Filesystem Metrics
//
// Reading-state sync operation counters, authentication attempt counters,
// active session gauge, and NFS retry counters fed by the filesystem
// observer.
//
// # Usage
//
// Metrics register themselves via promauto at package load. Call
// InitializeMetrics once at startup so label combinations exist from the
// first scrape, and serve promhttp.Handler on the metrics port.
package metrics
