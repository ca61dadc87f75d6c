//go:build cgo

package covers

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"folio/internal/logging"
)

var (
	vipsInitMu    sync.Mutex
	vipsInitDone  bool
	vipsAvailable bool
)

// InitVips starts libvips with conservative memory settings. Calling it is
// optional; without it thumbnails use the pure-Go resize path.
func InitVips() {
	vipsInitMu.Lock()
	defer vipsInitMu.Unlock()

	if vipsInitDone {
		return
	}

	// Configure logging before Startup so early vips chatter respects the
	// application log level.
	vips.LoggingSettings(vipsLogHandler, vipsLogThreshold())

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitDone = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMu.Lock()
	defer vipsInitMu.Unlock()

	if vipsInitDone {
		vips.Shutdown()
		vipsInitDone = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether the vips thumbnail path can be used.
func IsVipsAvailable() bool {
	vipsInitMu.Lock()
	defer vipsInitMu.Unlock()
	return vipsAvailable
}

// vipsLogThreshold maps the application log level to the quietest vips
// level worth forwarding.
func vipsLogThreshold() vips.LogLevel {
	switch logging.GetLevel() {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError
	default:
		return vips.LogLevelCritical
	}
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// vipsThumbnail shrinks cover bytes into a width x height PNG using
// decode-time shrinking, which keeps peak memory far below a full decode.
func vipsThumbnail(cover []byte, width, height int) ([]byte, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	ref, err := vips.LoadImageFromBuffer(cover, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips decode: %w", err)
	}
	defer ref.Close()

	if err := ref.Thumbnail(width, height, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("vips thumbnail: %w", err)
	}

	out, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}
	return out, nil
}
