// Package database provides SQLite storage for the catalog and for
// per-user reading state.
//
// It handles storage and retrieval of:
//   - Book metadata rows and the libraries that contain them
//   - User accounts and authentication sessions
//   - Reading progress per (user, book, device)
//   - Highlights, bookmarks and KOReader sidecar backups
//
// The database uses WAL mode for concurrent read performance and applies
// its schema and additive migrations automatically on open.
package database
