package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const progressColumns = `id, user_id, book_id, device_id, current_page,
	total_pages, percentage, current_chapter, position_data, status,
	started_at, finished_at, updated_at`

// SaveProgress upserts one device's position in one book. Each (user,
// book, device) triple owns a single row: a write from the same device
// replaces every mutable field, while started_at keeps its first recorded
// value so re-syncs never shift when a book was begun.
func (d *Database) SaveProgress(ctx context.Context, p *Progress) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_progress", start, err) }()

	if p.Status == "" {
		p.Status = "reading"
	}
	if p.UpdatedAt == 0 {
		p.UpdatedAt = time.Now().Unix()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO reading_progress (
			user_id, book_id, device_id, current_page, total_pages,
			percentage, current_chapter, position_data, status, started_at,
			finished_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, book_id, device_id) DO UPDATE SET
			current_page = excluded.current_page,
			total_pages = excluded.total_pages,
			percentage = excluded.percentage,
			current_chapter = excluded.current_chapter,
			position_data = excluded.position_data,
			status = excluded.status,
			started_at = COALESCE(reading_progress.started_at, excluded.started_at),
			finished_at = excluded.finished_at,
			updated_at = excluded.updated_at`,
		p.UserID, p.BookID, p.DeviceID, p.CurrentPage, p.TotalPages,
		p.Percentage, nullString(p.CurrentChapter),
		nullString(p.PositionData), p.Status, nullUnix(p.StartedAt),
		nullUnix(p.FinishedAt), p.UpdatedAt,
	)
	if err != nil {
		err = fmt.Errorf("saving progress for book %s: %w", p.BookID, err)
		return err
	}
	return nil
}

// GetProgress returns the merged position for a book: the row with the
// newest updated_at across all of the user's devices, with the row id as a
// deterministic tiebreak. Returns nil when no device has reported.
func (d *Database) GetProgress(ctx context.Context, userID, bookID string) (*Progress, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_progress", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	p, scanErr := scanProgress(d.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM reading_progress
		 WHERE user_id = ? AND book_id = ?
		 ORDER BY updated_at DESC, id DESC LIMIT 1`,
		userID, bookID))
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, nil
		}
		err = scanErr
		return nil, err
	}
	return p, nil
}

// ListProgress returns every device row the user has for a book, newest
// write first.
func (d *Database) ListProgress(ctx context.Context, userID, bookID string) ([]Progress, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_progress", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM reading_progress
		 WHERE user_id = ? AND book_id = ?
		 ORDER BY updated_at DESC, id DESC`,
		userID, bookID)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer rows.Close()

	var list []Progress
	for rows.Next() {
		p, scanErr := scanProgress(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		list = append(list, *p)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return list, nil
}

func scanProgress(r rowScanner) (*Progress, error) {
	var (
		p              Progress
		currentPage    sql.NullInt64
		totalPages     sql.NullInt64
		percentage     sql.NullFloat64
		currentChapter sql.NullString
		positionData   sql.NullString
		status         sql.NullString
		startedAt      sql.NullInt64
		finishedAt     sql.NullInt64
	)
	if err := r.Scan(&p.ID, &p.UserID, &p.BookID, &p.DeviceID, &currentPage,
		&totalPages, &percentage, &currentChapter, &positionData, &status,
		&startedAt, &finishedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CurrentPage = int(currentPage.Int64)
	p.TotalPages = int(totalPages.Int64)
	p.Percentage = percentage.Float64
	p.CurrentChapter = currentChapter.String
	p.PositionData = positionData.String
	p.Status = status.String
	p.StartedAt = startedAt.Int64
	p.FinishedAt = finishedAt.Int64
	return &p, nil
}
