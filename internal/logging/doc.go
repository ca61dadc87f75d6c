// Package logging is the leveled logger shared by the server and the
// folioctl CLI.
//
// Output goes through the standard log package with a [LEVEL] prefix.
// The threshold comes from LOG_LEVEL (debug, info, warn, error) and is
// fixed at first use; DEBUG=1 overrides it to debug. Info is the
// default.
package logging
