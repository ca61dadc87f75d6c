// Package mirror keeps an immutable in-memory view of the book catalog.
//
// The scanner publishes a fresh Snapshot after every completed scan; OPDS
// and cover handlers read whichever snapshot is current without taking a
// lock. Readers therefore never observe a half-updated catalog: a snapshot
// is built completely, then swapped in with a single atomic store.
//
// Before the first scan completes an empty snapshot is served, so the
// server can accept requests immediately after startup.
package mirror
