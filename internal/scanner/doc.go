// Package scanner keeps the book store in sync with the library
// directories on disk.
//
// A scan walks each library, compares every known-format file against
// the stored size and mtime (the sole change signal; content is never
// hashed), extracts metadata for new and changed files on a bounded
// worker pool, and prunes rows whose files are gone. Pruning only runs
// after a clean, complete walk so transient filesystem errors never
// delete catalog state. After each scan the in-memory catalog mirror is
// rebuilt and swapped atomically.
package scanner
