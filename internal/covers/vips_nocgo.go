//go:build !cgo

package covers

import "fmt"

// govips requires cgo; in cgo-less builds these fallbacks keep the vips
// path permanently unavailable so thumbnails use the pure-Go resize path.

// InitVips is a no-op without cgo; thumbnails use the pure-Go resize path.
func InitVips() {}

// ShutdownVips is a no-op without cgo.
func ShutdownVips() {}

// IsVipsAvailable reports whether the vips thumbnail path can be used.
func IsVipsAvailable() bool { return false }

func vipsThumbnail(cover []byte, width, height int) ([]byte, error) {
	return nil, fmt.Errorf("libvips not available")
}
