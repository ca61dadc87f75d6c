/*
Package filesystem provides resilient filesystem operations with automatic
retry logic for NFS stale file handle errors.

Library directories frequently live on NFS mounts; accessing files during
network hiccups or server-side changes surfaces ESTALE (stale file handle,
errno 116). This package wraps os.Stat and os.Open with retry logic for
exactly that failure.

# Key Features

  - Automatic retry with exponential backoff for ESTALE errors
  - Configurable retry attempts (default: 3) and backoff timings
  - All other errors fail immediately without retry
  - Retry activity reported through a pluggable Observer

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}
	defer file.Close()

Custom retry configuration:

	config := filesystem.RetryConfig{
	    MaxRetries:     5,
	    InitialBackoff: 100 * time.Millisecond,
	    MaxBackoff:     1 * time.Second,
	}

# Integration

The scanner stats every candidate file through this package, and format
handlers open archives through it, so a flaky mount degrades a scan to
slow instead of wrong. Wire the metrics observer at startup with
SetObserver(metrics.NewFilesystemObserver()).
*/
package filesystem
