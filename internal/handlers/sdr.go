package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"folio/internal/apperr"
	"folio/internal/database"
	"folio/internal/logging"
	"folio/internal/sdr"

	"github.com/gorilla/mux"
)

// maxSdrUpload caps sidecar uploads. KOReader .sdr archives are Lua
// metadata plus at most a custom cover image, far under this.
const maxSdrUpload = 16 << 20

// SdrListResponse wraps the backup summaries.
type SdrListResponse struct {
	Sdrs []database.SdrInfo `json:"sdrs"`
}

// ListSdr returns summaries of every sidecar backup the user holds.
func (h *Handlers) ListSdr(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	infos, err := h.db.ListSdr(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if infos == nil {
		infos = []database.SdrInfo{}
	}
	writeJSON(w, SdrListResponse{Sdrs: infos})
}

// GetSdrInfo returns one backup's summary, or JSON null when the user has
// never uploaded one for this book.
func (h *Handlers) GetSdrInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	info, err := h.db.GetSdrInfo(r.Context(), user.ID, mux.Vars(r)["book_id"])
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, nil)
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, info)
}

// DownloadSdr streams the stored sidecar archive back verbatim.
func (h *Handlers) DownloadSdr(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	data, err := h.db.GetSdr(r.Context(), user.ID, mux.Vars(r)["book_id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logging.Debug("Writing sdr backup: %v", err)
	}
}

// UploadSdr replaces the user's backup for a book with the request body.
// The archive is opaque to the server except for a best-effort summary
// parse; a blob that does not parse still stores fine.
func (h *Handlers) UploadSdr(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSdrUpload))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: reading sdr upload: %v", apperr.ErrInvalidFormat, err))
		return
	}

	lastPage, percent := sdr.Parse(data)
	if err := h.db.SaveSdr(r.Context(), user.ID, mux.Vars(r)["book_id"], data, lastPage, percent); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "ok")
}
