/*
Package streaming provides timeout-protected writers for HTTP downloads.

E-reader clients are the slowest consumers this server has: e-ink devices
suspend their radio mid-transfer and resume seconds later. A plain
io.Copy to such a client can hold a handler goroutine and an open book
file indefinitely. TimeoutWriter bounds each write, terminates
connections that stay idle past a grace period, and splits large writes
into flushed chunks so suspended readers can resume where they left off.

Typical use from a download handler:

	file, err := os.Open(book.Path)
	if err != nil { ... }
	defer file.Close()

	err = streaming.StreamWithTimeout(r.Context(), w, file, streaming.DefaultConfig())
	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Warn("Download aborted: %v", err)
	}

ErrClientGone is the normal outcome for a client that gave up and is not
worth logging above debug level.
*/
package streaming
