package filesystem

// Observer records filesystem retry metrics. The implementation lives in the
// metrics package; the interface breaks the import cycle between filesystem
// and metrics.
type Observer interface {
	// ObserveRetryAttempt records a retry of an operation ("stat", "open").
	ObserveRetryAttempt(operation string)
	// ObserveRetrySuccess records an operation that succeeded after retrying.
	ObserveRetrySuccess(operation string)
	// ObserveRetryFailure records an operation that failed after all retries.
	ObserveRetryFailure(operation string)
	// ObserveStaleError records an ESTALE occurrence.
	ObserveStaleError(operation string)
}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is silently skipped (safe for tests).
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
// Call this once at startup after creating the observer implementation.
func SetObserver(o Observer) {
	defaultObserver = o
}

func retryAttempt(op string) {
	if defaultObserver != nil {
		defaultObserver.ObserveRetryAttempt(op)
	}
}

func retrySuccess(op string) {
	if defaultObserver != nil {
		defaultObserver.ObserveRetrySuccess(op)
	}
}

func retryFailure(op string) {
	if defaultObserver != nil {
		defaultObserver.ObserveRetryFailure(op)
	}
}

func staleError(op string) {
	if defaultObserver != nil {
		defaultObserver.ObserveStaleError(op)
	}
}
