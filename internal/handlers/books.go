package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"folio/internal/apperr"
	"folio/internal/covers"
	"folio/internal/database"
	"folio/internal/filesystem"
	"folio/internal/logging"
	"folio/internal/placeholder"
	"folio/internal/streaming"

	"github.com/gorilla/mux"
)

// bookFromRequest resolves {id} against the catalog mirror.
func (h *Handlers) bookFromRequest(w http.ResponseWriter, r *http.Request) (*database.Book, bool) {
	id := mux.Vars(r)["id"]
	book, ok := h.mirror.ByID(id)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: book %s", apperr.ErrNotFound, id))
		return nil, false
	}
	return book, true
}

// GetBook returns one book's metadata as JSON.
func (h *Handlers) GetBook(w http.ResponseWriter, r *http.Request) {
	book, ok := h.bookFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, book)
}

// DownloadBook streams the book file. KOReader requests the same content
// through the /download.{ext} alias so the saved file keeps its extension;
// both routes land here.
func (h *Handlers) DownloadBook(w http.ResponseWriter, r *http.Request) {
	book, ok := h.bookFromRequest(w, r)
	if !ok {
		return
	}

	file, err := filesystem.OpenWithRetry(book.Path, filesystem.DefaultRetryConfig())
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: opening %s: %v", apperr.ErrIO, filepath.Base(book.Path), err))
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", book.Format.MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(book.Path)))
	w.Header().Set("Content-Length", strconv.FormatInt(book.FileSize, 10))
	if book.FileHash != "" {
		w.Header().Set("ETag", `"`+book.FileHash+`"`)
	}

	if err := streaming.StreamWithTimeout(r.Context(), w, file, streaming.DefaultConfig()); err != nil {
		if errors.Is(err, streaming.ErrClientGone) {
			logging.Debug("Download aborted by client: %s", book.ID)
			return
		}
		// Headers are already written; all we can do is log.
		logging.Warn("Streaming %s: %v", book.ID, err)
	}
}

// coverOrDefault returns the book's cover bytes, substituting a generated
// default when the file has none embedded.
func (h *Handlers) coverOrDefault(w http.ResponseWriter, r *http.Request, book *database.Book) ([]byte, bool) {
	data, err := h.covers.Get(r.Context(), book)
	if err == nil {
		return data, true
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		writeError(w, r, err)
		return nil, false
	}
	return covers.Default(book.Title), true
}

// GetCover serves the full-size cover. The bytes are whatever the book
// embeds, so the content type is sniffed rather than assumed.
func (h *Handlers) GetCover(w http.ResponseWriter, r *http.Request) {
	book, ok := h.bookFromRequest(w, r)
	if !ok {
		return
	}
	data, ok := h.coverOrDefault(w, r, book)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		logging.Debug("Writing cover for %s: %v", book.ID, err)
	}
}

// GetThumbnail serves the shrunken cover used in list views.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	book, ok := h.bookFromRequest(w, r)
	if !ok {
		return
	}

	data, err := h.covers.Thumbnail(r.Context(), book)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			writeError(w, r, err)
			return
		}
		// No embedded cover. The generated default is already thumbnail
		// sized, so serve it untouched.
		data = covers.Default(book.Title)
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		logging.Debug("Writing thumbnail for %s: %v", book.ID, err)
	}
}

// Placeholder width and quality bounds. Requests outside them are clamped
// rather than rejected since reader plugins hardcode odd values.
const (
	placeholderMinWidth   = 200
	placeholderMaxWidth   = 1200
	placeholderMinQuality = 50
	placeholderMaxQuality = 100
)

// GetPlaceholder serves a one-page PDF stand-in carrying the cover and
// metadata. Cloud-sync readers download these instead of full files to
// keep the device catalog browsable offline.
func (h *Handlers) GetPlaceholder(w http.ResponseWriter, r *http.Request) {
	book, ok := h.bookFromRequest(w, r)
	if !ok {
		return
	}

	opts := placeholder.DefaultOptions()
	if v, err := strconv.Atoi(r.URL.Query().Get("width")); err == nil {
		opts.Width = clamp(v, placeholderMinWidth, placeholderMaxWidth)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("quality")); err == nil {
		opts.Quality = clamp(v, placeholderMinQuality, placeholderMaxQuality)
	}

	cover, ok := h.coverOrDefault(w, r, book)
	if !ok {
		return
	}

	pdf, err := placeholder.Generate(book, cover, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := filepath.Base(book.Path)
	if filename == "." || filename == "/" {
		filename = "placeholder.pdf"
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(pdf); err != nil {
		logging.Debug("Writing placeholder for %s: %v", book.ID, err)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
