package handlers

import (
	"net/http"
	"time"

	"folio/internal/database"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ProgressUpdateRequest is the body of a progress PUT. Everything is
// optional; the server stamps status and timestamps.
type ProgressUpdateRequest struct {
	DeviceID       string  `json:"device_id"`
	CurrentPage    int     `json:"current_page"`
	TotalPages     int     `json:"total_pages"`
	Percentage     float64 `json:"percentage"`
	CurrentChapter string  `json:"current_chapter"`
	PositionData   string  `json:"position_data"`
	Status         string  `json:"status"`
}

// HighlightRequest is the body of a highlight POST. A client that already
// assigned an id resends it on edit so note and color update in place.
type HighlightRequest struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	Page     int    `json:"page"`
	Chapter  string `json:"chapter"`
	Text     string `json:"text"`
	Note     string `json:"note"`
	Color    string `json:"color"`
	Pos0     string `json:"pos0"`
	Pos1     string `json:"pos1"`
}

// BookmarkRequest is the body of a bookmark POST.
type BookmarkRequest struct {
	ID           string `json:"id"`
	Page         int    `json:"page"`
	PositionData string `json:"position_data"`
	Name         string `json:"name"`
}

// DevicesResponse wraps the device listing.
type DevicesResponse struct {
	Devices []database.Device `json:"devices"`
}

// GetProgress returns the user's most recent position in a book across
// all devices, or JSON null when no device has reported yet. Clients
// treat null as "start from the beginning".
func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	progress, err := h.db.GetProgress(r.Context(), user.ID, mux.Vars(r)["book_id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, progress)
}

// UpdateProgress stores the calling device's position. The store keeps
// the earliest started_at across writes, so restamping it here never
// moves the floor forward.
func (h *Handlers) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var req ProgressUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now().Unix()
	status := req.Status
	if status == "" {
		status = "reading"
	}
	progress := &database.Progress{
		UserID:         user.ID,
		BookID:         mux.Vars(r)["book_id"],
		DeviceID:       req.DeviceID,
		CurrentPage:    req.CurrentPage,
		TotalPages:     req.TotalPages,
		Percentage:     req.Percentage,
		CurrentChapter: req.CurrentChapter,
		PositionData:   req.PositionData,
		Status:         status,
		StartedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.db.SaveProgress(r.Context(), progress); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "ok")
}

// GetHighlights lists the user's highlights in a book, oldest first.
func (h *Handlers) GetHighlights(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	highlights, err := h.db.GetHighlights(r.Context(), user.ID, mux.Vars(r)["book_id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, highlights)
}

// AddHighlight stores a highlight and echoes the stored row, including
// the server-assigned id when the client sent none.
func (h *Handlers) AddHighlight(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var req HighlightRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Color == "" {
		req.Color = "yellow"
	}

	now := time.Now().Unix()
	highlight := &database.Highlight{
		ID:        req.ID,
		UserID:    user.ID,
		BookID:    mux.Vars(r)["book_id"],
		DeviceID:  req.DeviceID,
		Page:      req.Page,
		Chapter:   req.Chapter,
		Text:      req.Text,
		Note:      req.Note,
		Color:     req.Color,
		Pos0:      req.Pos0,
		Pos1:      req.Pos1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.db.SaveHighlight(r.Context(), highlight); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, highlight)
}

// DeleteHighlight removes one of the user's highlights. Deleting an id
// that is absent or belongs to someone else is a silent no-op.
func (h *Handlers) DeleteHighlight(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	if _, err := h.db.DeleteHighlight(r.Context(), mux.Vars(r)["id"], user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "ok")
}

// GetBookmarks lists the user's bookmarks in a book.
func (h *Handlers) GetBookmarks(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	bookmarks, err := h.db.GetBookmarks(r.Context(), user.ID, mux.Vars(r)["book_id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, bookmarks)
}

// AddBookmark stores a bookmark and echoes the stored row.
func (h *Handlers) AddBookmark(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	var req BookmarkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	bookmark := &database.Bookmark{
		ID:           req.ID,
		UserID:       user.ID,
		BookID:       mux.Vars(r)["book_id"],
		Page:         req.Page,
		PositionData: req.PositionData,
		Name:         req.Name,
		CreatedAt:    time.Now().Unix(),
	}

	if err := h.db.SaveBookmark(r.Context(), bookmark); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, bookmark)
}

// DeleteBookmark removes one of the user's bookmarks.
func (h *Handlers) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	if _, err := h.db.DeleteBookmark(r.Context(), mux.Vars(r)["id"], user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "ok")
}

// GetDevices lists every device that has logged in or synced for the user.
func (h *Handlers) GetDevices(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	devices, err := h.db.ListDevices(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if devices == nil {
		devices = []database.Device{}
	}
	writeJSON(w, DevicesResponse{Devices: devices})
}
