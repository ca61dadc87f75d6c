// Package handlers provides HTTP request handlers for the catalog server.
//
// It includes handlers for:
//   - OPDS catalog feeds and OpenSearch
//   - Book metadata, downloads, covers and placeholder PDFs
//   - Login sessions and bearer-token authentication
//   - Per-device reading progress, highlights and bookmarks
//   - KOReader sidecar (.sdr) backup storage
//   - Health checks, build info and catalog stats
package handlers
