// Command folioctl administers a folio catalog server from the command
// line, operating directly on the database.
//
// It supports the following operations:
//   - user add/list/del/passwd: manage accounts used by sync clients
//   - library add/list/del: manage registered book directories
//   - scan: index book files, optionally for a single library
//   - stats: show catalog totals
//
// Usage:
//
//	folioctl <command> [args]
//
// The database is located through the --data-dir flag or the DATA_DIR
// environment variable (default: ./data), matching the server's
// configuration. Passwords are prompted without echo and confirmed;
// changing a password invalidates all of that user's sessions.
//
// Notes:
//
// Scanning while the server is running is safe (SQLite serializes the
// writers), but the server's in-memory catalog only picks up the new rows
// on its next scan.
package main
