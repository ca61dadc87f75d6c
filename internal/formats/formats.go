package formats

import (
	"context"
	"path/filepath"
	"strings"
)

// Format identifies a supported book container format. The string value
// doubles as the canonical file extension and as the format tag stored
// in the catalog.
type Format string

const (
	// FormatEPUB represents EPUB (Electronic Publication) files.
	FormatEPUB Format = "epub"
	// FormatPDF represents PDF (Portable Document Format) files.
	FormatPDF Format = "pdf"
	// FormatCBZ represents CBZ (Comic Book ZIP) archives.
	FormatCBZ Format = "cbz"
	// FormatCBR represents CBR (Comic Book RAR) archives.
	FormatCBR Format = "cbr"
	// FormatCB7 represents CB7 (Comic Book 7-Zip) archives.
	FormatCB7 Format = "cb7"
	// FormatMOBI represents Mobipocket eBooks.
	FormatMOBI Format = "mobi"
	// FormatAZW represents Amazon Kindle AZW eBooks.
	FormatAZW Format = "azw"
	// FormatAZW3 represents Amazon Kindle KF8 eBooks.
	FormatAZW3 Format = "azw3"
	// FormatTXT represents plain text files.
	FormatTXT Format = "txt"
	// FormatHTML represents HTML documents.
	FormatHTML Format = "html"
	// FormatMD represents Markdown documents.
	FormatMD Format = "md"
)

// FormatExtensions maps lowercase file extensions (with leading dot) to
// their book format.
var FormatExtensions = map[string]Format{
	".epub":     FormatEPUB,
	".pdf":      FormatPDF,
	".cbz":      FormatCBZ,
	".cbr":      FormatCBR,
	".cb7":      FormatCB7,
	".mobi":     FormatMOBI,
	".azw":      FormatAZW,
	".azw3":     FormatAZW3,
	".txt":      FormatTXT,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".md":       FormatMD,
	".markdown": FormatMD,
}

// mimeTypes maps formats to their MIME types.
var mimeTypes = map[Format]string{
	FormatEPUB: "application/epub+zip",
	FormatPDF:  "application/pdf",
	FormatCBZ:  "application/vnd.comicbook+zip",
	FormatCBR:  "application/vnd.comicbook-rar",
	FormatCB7:  "application/x-cb7",
	FormatMOBI: "application/x-mobipocket-ebook",
	FormatAZW:  "application/vnd.amazon.ebook",
	FormatAZW3: "application/vnd.amazon.ebook",
	FormatTXT:  "text/plain",
	FormatHTML: "text/html",
	FormatMD:   "text/markdown",
}

// displayNames maps formats to human-readable names.
var displayNames = map[Format]string{
	FormatEPUB: "EPUB",
	FormatPDF:  "PDF",
	FormatCBZ:  "CBZ",
	FormatCBR:  "CBR",
	FormatCB7:  "CB7",
	FormatMOBI: "MOBI",
	FormatAZW:  "AZW",
	FormatAZW3: "AZW3",
	FormatTXT:  "Plain Text",
	FormatHTML: "HTML",
	FormatMD:   "Markdown",
}

// FromPath detects the book format of a file from its extension.
// Returns false for unrecognized extensions.
func FromPath(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := FormatExtensions[ext]
	return f, ok
}

// MimeType returns the MIME type for the format.
// Returns "application/octet-stream" if the format is not recognized.
func (f Format) MimeType() string {
	if mime, ok := mimeTypes[f]; ok {
		return mime
	}
	return "application/octet-stream"
}

// DisplayName returns a human-readable name for the format.
func (f Format) DisplayName() string {
	if name, ok := displayNames[f]; ok {
		return name
	}
	return strings.ToUpper(string(f))
}

// IsComic returns true for comic book archive formats.
func (f Format) IsComic() bool {
	return f == FormatCBZ || f == FormatCBR || f == FormatCB7
}

// Metadata holds everything a handler can extract from a book file.
// Fields a handler cannot recover are left at their zero value.
type Metadata struct {
	Title       string
	Authors     []string
	Description string
	Publisher   string
	Published   string
	Language    string
	ISBN        string
	Series      string
	SeriesIndex float64
	Tags        []string
	PageCount   int

	// Cover is the extracted cover image, always PNG encoded, or nil
	// when the container has no usable cover.
	Cover []byte
}

// Handler extracts metadata and cover art for a single book format.
type Handler interface {
	// Extract reads the file at path and returns whatever metadata it
	// could recover. Field-level extraction problems are not errors;
	// an error means the file itself could not be processed.
	Extract(ctx context.Context, path string) (*Metadata, error)
}

// handlers maps each format to its handler. Formats without a dedicated
// parser fall back to filename-derived metadata.
var handlers = map[Format]Handler{
	FormatEPUB: epubHandler{},
	FormatPDF:  newPDFHandler(),
	FormatCBZ:  comicHandler{},
	FormatCBR:  comicHandler{},
	FormatCB7:  comicHandler{},
	FormatMOBI: minimalHandler{},
	FormatAZW:  minimalHandler{},
	FormatAZW3: minimalHandler{},
	FormatTXT:  minimalHandler{},
	FormatHTML: minimalHandler{},
	FormatMD:   minimalHandler{},
}

// HandlerFor returns the handler for a format. Unknown formats get the
// filename-only fallback handler.
func HandlerFor(f Format) Handler {
	if h, ok := handlers[f]; ok {
		return h
	}
	return minimalHandler{}
}

// fileStem returns the filename without directory or extension.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
