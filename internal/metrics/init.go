package metrics

// InitializeMetrics pre-populates the expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	dbOps := []string{
		"save_book", "get_book", "get_library_books", "get_all_books",
		"delete_books_not_in", "save_progress", "get_progress",
		"save_highlight", "get_highlights", "save_bookmark", "get_bookmarks",
		"save_sdr", "get_sdr", "create_session", "get_session",
	}
	for _, op := range dbOps {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, format := range []string{"epub", "pdf", "cbz", "cbr", "cb7", "mobi", "txt", "html", "md"} {
		ExtractionsTotal.WithLabelValues(format, "success")
		ExtractionsTotal.WithLabelValues(format, "error")
		ExtractionDuration.WithLabelValues(format)
	}

	syncKinds := []string{
		"progress_get", "progress_put", "highlights_get", "highlight_put",
		"highlight_delete", "bookmarks_get", "bookmark_put", "bookmark_delete",
		"sdr_get", "sdr_put", "sdr_list", "sdr_info",
	}
	for _, kind := range syncKinds {
		SyncOperationsTotal.WithLabelValues(kind, "success")
		SyncOperationsTotal.WithLabelValues(kind, "error")
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}

	for _, status := range []string{"success", "failure"} {
		AuthAttemptsTotal.WithLabelValues(status)
	}

	ThumbnailGenerationsTotal.WithLabelValues("success")
	ThumbnailGenerationsTotal.WithLabelValues("error")
}
