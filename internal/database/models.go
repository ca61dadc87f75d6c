package database

import "folio/internal/formats"

// User roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Timestamps are unix seconds throughout. Sync clients exchange them as
// plain integers, so the row structs carry int64 rather than time.Time and
// the JSON field names follow the wire format the reader plugins expect.

// Book is one catalog row. Authors and Tags round-trip through the
// authors_json and tags_json columns; Author keeps the joined display
// string used for sorting.
type Book struct {
	ID          string         `json:"id"`
	LibraryID   string         `json:"library_id"`
	FileHash    string         `json:"file_hash,omitempty"`
	Title       string         `json:"title"`
	Author      string         `json:"author,omitempty"`
	Authors     []string       `json:"authors,omitempty"`
	Description string         `json:"description,omitempty"`
	Publisher   string         `json:"publisher,omitempty"`
	Published   string         `json:"published,omitempty"`
	Language    string         `json:"language,omitempty"`
	ISBN        string         `json:"isbn,omitempty"`
	Series      string         `json:"series,omitempty"`
	SeriesIndex float64        `json:"series_index,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Path        string         `json:"-"`
	Format      formats.Format `json:"format"`
	FileSize    int64          `json:"file_size"`
	Mtime       int64          `json:"-"`
	PageCount   int            `json:"page_count,omitempty"`
	CoverCached bool           `json:"-"`
	CreatedAt   int64          `json:"created_at"`
	UpdatedAt   int64          `json:"updated_at"`
}

// FileStamp is the change-detection tuple the scanner loads per library:
// a file whose size and mtime both match is treated as unchanged.
type FileStamp struct {
	ID    string
	Size  int64
	Mtime int64
}

// Library is one configured book directory.
type Library struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	IsPublic  bool   `json:"is_public"`
	OwnerID   string `json:"owner_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// User is one account row. PasswordHash never serializes.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	DisplayName  string `json:"display_name,omitempty"`
	Role         string `json:"role"`
	CreatedAt    int64  `json:"created_at"`
	LastLogin    int64  `json:"last_login,omitempty"`
}

// Session is one server-side login session. Token holds the SHA-256 hex
// digest of the bearer token; the raw value is never persisted.
type Session struct {
	Token     string
	UserID    string
	DeviceID  string
	ExpiresAt int64
}

// Progress is one device's reading position in one book. Each (user, book,
// device) triple owns exactly one row; merged reads pick the newest.
type Progress struct {
	ID             int64   `json:"id"`
	UserID         string  `json:"user_id"`
	BookID         string  `json:"book_id"`
	DeviceID       string  `json:"device_id"`
	CurrentPage    int     `json:"current_page"`
	TotalPages     int     `json:"total_pages"`
	Percentage     float64 `json:"percentage"`
	CurrentChapter string  `json:"current_chapter,omitempty"`
	PositionData   string  `json:"position_data,omitempty"`
	Status         string  `json:"status"`
	StartedAt      int64   `json:"started_at,omitempty"`
	FinishedAt     int64   `json:"finished_at,omitempty"`
	UpdatedAt      int64   `json:"updated_at"`
}

// Highlight is one text annotation. After insert only Note, Color and
// UpdatedAt may change.
type Highlight struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	BookID    string `json:"book_id"`
	DeviceID  string `json:"device_id,omitempty"`
	Page      int    `json:"page"`
	Chapter   string `json:"chapter,omitempty"`
	Text      string `json:"text"`
	Note      string `json:"note,omitempty"`
	Color     string `json:"color"`
	Pos0      string `json:"pos0,omitempty"`
	Pos1      string `json:"pos1,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Bookmark is one saved position. Only Name may change after insert.
type Bookmark struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	BookID       string `json:"book_id"`
	Page         int    `json:"page"`
	PositionData string `json:"position_data,omitempty"`
	Name         string `json:"name,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// Device is one reader that has authenticated or synced.
type Device struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Model    string `json:"model,omitempty"`
	LastSeen int64  `json:"last_seen"`
}

// SdrInfo describes one stored KOReader sidecar backup without its payload.
// LastPage and PercentFinished are zero when the blob could not be parsed.
type SdrInfo struct {
	BookID          string  `json:"book_id"`
	LastPage        int     `json:"last_page,omitempty"`
	PercentFinished float64 `json:"percent_finished,omitempty"`
	Size            int     `json:"size"`
	UpdatedAt       int64   `json:"updated_at"`
}
