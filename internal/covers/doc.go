// Package covers manages the on-disk cover and thumbnail cache.
//
// Covers are extracted lazily on first request and stored as PNG under
// DATA_DIR/covers; thumbnails are derived from cached covers under
// DATA_DIR/thumbnails. Entries are never invalidated. Books without
// embedded artwork get a deterministic generated placeholder.
//
// Thumbnail generation uses libvips when InitVips has been called and
// falls back to a pure-Go resize otherwise, so the binary runs without
// cgo or the native library present.
package covers
