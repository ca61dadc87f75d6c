package handlers

import (
	"net/http"

	"folio/internal/startup"
)

// GetVersion reports the build stamp. Left unauthenticated so operators
// can check what a deployment runs without minting a token.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}
