// Package middleware provides the HTTP middleware stack for the
// catalog server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with path normalization
//   - Response compression (gzip) for JSON and OPDS feeds
package middleware
