package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"folio/internal/logging"
)

var (
	// ErrWriteTimeout indicates a single write exceeded the configured
	// timeout; the client is receiving too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates the client disconnected before the
	// transfer completed.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates the stream was shut down via Close or
	// a parent context.
	ErrStreamCanceled = errors.New("stream canceled")
)

// Config bounds one streamed response.
type Config struct {
	// WriteTimeout is the maximum wait for a single write to complete.
	WriteTimeout time.Duration
	// IdleTimeout terminates the stream when no write succeeds for this
	// long. Zero disables idle checking.
	IdleTimeout time.Duration
	// ChunkSize splits larger writes and flushes between chunks. Zero
	// writes buffers as received.
	ChunkSize int
}

// DefaultConfig suits book downloads to e-ink devices, which routinely
// pause several seconds between reads while their radio sleeps.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
		ChunkSize:    64 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter with per-write and idle
// timeouts.
type TimeoutWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	config  Config

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	start        time.Time
	lastWrite    time.Time
	bytesWritten int64
}

// NewTimeoutWriter wraps w. The returned writer must be closed.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config Config) *TimeoutWriter {
	wctx, cancel := context.WithCancel(ctx)
	tw := &TimeoutWriter{
		w:         w,
		config:    config,
		ctx:       wctx,
		cancel:    cancel,
		start:     time.Now(),
		lastWrite: time.Now(),
	}
	if f, ok := w.(http.Flusher); ok {
		tw.flusher = f
	}
	go tw.idleChecker()
	return tw
}

// Write implements io.Writer. Large buffers are written in flushed
// chunks when ChunkSize is set.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	select {
	case <-tw.ctx.Done():
		return 0, tw.contextError()
	default:
	}

	if tw.config.ChunkSize > 0 && len(p) > tw.config.ChunkSize {
		return tw.writeChunked(p)
	}
	return tw.writeOne(p)
}

func (tw *TimeoutWriter) writeChunked(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		select {
		case <-tw.ctx.Done():
			return written, tw.contextError()
		default:
		}

		chunk := tw.config.ChunkSize
		if len(p) < chunk {
			chunk = len(p)
		}
		n, err := tw.writeOne(p[:chunk])
		written += n
		if err != nil {
			return written, err
		}
		p = p[chunk:]

		if tw.flusher != nil {
			tw.flusher.Flush()
		}
	}
	return written, nil
}

// writeOne performs a single write in a goroutine so a wedged connection
// cannot block past WriteTimeout. A timed-out write leaks that goroutine
// until the connection is torn down, which http.Server does once the
// handler returns.
func (tw *TimeoutWriter) writeOne(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, err := tw.w.Write(p)
		done <- result{n, err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			tw.mu.Lock()
			tw.lastWrite = time.Now()
			tw.bytesWritten += int64(res.n)
			tw.mu.Unlock()
		}
		return res.n, res.err
	case <-time.After(tw.config.WriteTimeout):
		tw.cancel()
		return 0, ErrWriteTimeout
	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			tw.mu.Unlock()

			if closed {
				return
			}
			if idle > tw.config.IdleTimeout {
				logging.Warn("Stream idle for %v, terminating", idle.Round(time.Second))
				tw.cancel()
				return
			}
		case <-tw.ctx.Done():
			return
		}
	}
}

func (tw *TimeoutWriter) contextError() error {
	if errors.Is(tw.ctx.Err(), context.Canceled) {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close releases the writer. Subsequent writes fail with
// ErrStreamCanceled.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return nil
	}
	tw.closed = true
	tw.cancel()
	return nil
}

// Stats reports bytes written and elapsed time so far.
func (tw *TimeoutWriter) Stats() (int64, time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.start)
}

// StreamWithTimeout copies r to w under the configured timeouts.
// Response headers are the caller's responsibility.
func StreamWithTimeout(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) error {
	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	_, err := io.Copy(tw, r)

	bytes, elapsed := tw.Stats()
	logging.Debug("Stream finished: %d bytes in %v", bytes, elapsed.Round(time.Millisecond))
	return err
}
