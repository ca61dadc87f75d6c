package handlers

import (
	"net/http"
	"runtime"
	"time"

	"folio/internal/logging"
	"folio/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

var serverStart = time.Now()

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Scanning bool   `json:"scanning"`

	// Catalog summary
	Books            int    `json:"books"`
	CatalogGenerated string `json:"catalogGenerated,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	DatabaseSizeBytes int64 `json:"databaseSizeBytes,omitempty"`
}

// HealthCheck reports the service state. The catalog mirror loads from
// the database before the listener starts, so a responding server is a
// ready server; only a failing database stats probe degrades the status.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(serverStart).Round(time.Second).String(),
		Scanning:     h.scanner.IsScanning(),
		Books:        h.mirror.Count(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if generated := h.mirror.Generated(); !generated.IsZero() {
		response.CatalogGenerated = generated.Format(time.RFC3339)
	}

	if stats, err := h.db.Stats(r.Context()); err != nil {
		logging.Warn("Health check database probe: %v", err)
		response.Status = statusDegraded
	} else {
		response.DatabaseSizeBytes = stats.MainSize + stats.WALSize
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}
