//go:build !cgo

package database

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure. Without cgo the sqlite3 driver is a stub that cannot
// open a connection, so no constraint error can ever reach this path; the
// typed error codes it would inspect are cgo-only.
func isUniqueViolation(err error) bool {
	return false
}
