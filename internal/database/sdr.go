package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"folio/internal/apperr"
)

// SaveSdr stores one KOReader sidecar backup, replacing any previous blob
// for the (user, book) pair wholesale. lastPage and percent come from
// best-effort parsing of the blob; nil means the summary could not be
// extracted, which is not an error.
func (d *Database) SaveSdr(ctx context.Context, userID, bookID string, data []byte, lastPage *int64, percent *float64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_sdr", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO sdr_backups (user_id, book_id, data, last_page, percent_finished, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, book_id) DO UPDATE SET
			data = excluded.data,
			last_page = excluded.last_page,
			percent_finished = excluded.percent_finished,
			updated_at = excluded.updated_at`,
		userID, bookID, data, nullIntPtr(lastPage), nullFloatPtr(percent),
		time.Now().Unix(),
	)
	if err != nil {
		err = fmt.Errorf("saving sdr backup for book %s: %w", bookID, err)
		return err
	}
	return nil
}

// GetSdr returns the raw sidecar blob, or ErrNotFound.
func (d *Database) GetSdr(ctx context.Context, userID, bookID string) ([]byte, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_sdr", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data []byte
	scanErr := d.db.QueryRowContext(ctx,
		`SELECT data FROM sdr_backups WHERE user_id = ? AND book_id = ?`,
		userID, bookID).Scan(&data)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: sdr backup for book %s", apperr.ErrNotFound, bookID)
		} else {
			err = scanErr
		}
		return nil, err
	}
	return data, nil
}

// GetSdrInfo returns the summary for one backup without loading the blob,
// or ErrNotFound.
func (d *Database) GetSdrInfo(ctx context.Context, userID, bookID string) (*SdrInfo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_sdr_info", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	info, scanErr := scanSdrInfo(d.db.QueryRowContext(ctx, `
		SELECT book_id, last_page, percent_finished, LENGTH(data), updated_at
		FROM sdr_backups WHERE user_id = ? AND book_id = ?`,
		userID, bookID))
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: sdr backup for book %s", apperr.ErrNotFound, bookID)
		} else {
			err = scanErr
		}
		return nil, err
	}
	return info, nil
}

// ListSdr returns the summaries of every backup a user holds, most
// recently synced first.
func (d *Database) ListSdr(ctx context.Context, userID string) ([]SdrInfo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_sdr", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx, `
		SELECT book_id, last_page, percent_finished, LENGTH(data), updated_at
		FROM sdr_backups WHERE user_id = ?
		ORDER BY updated_at DESC, book_id`,
		userID)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer rows.Close()

	var list []SdrInfo
	for rows.Next() {
		info, scanErr := scanSdrInfo(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		list = append(list, *info)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteSdr removes one backup. Returns false when there was nothing to
// remove.
func (d *Database) DeleteSdr(ctx context.Context, userID, bookID string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_sdr", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, execErr := d.db.ExecContext(ctx,
		`DELETE FROM sdr_backups WHERE user_id = ? AND book_id = ?`,
		userID, bookID)
	if execErr != nil {
		err = execErr
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func scanSdrInfo(r rowScanner) (*SdrInfo, error) {
	var (
		info     SdrInfo
		lastPage sql.NullInt64
		percent  sql.NullFloat64
	)
	if err := r.Scan(&info.BookID, &lastPage, &percent, &info.Size,
		&info.UpdatedAt); err != nil {
		return nil, err
	}
	info.LastPage = int(lastPage.Int64)
	info.PercentFinished = percent.Float64
	return &info, nil
}

func nullIntPtr(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloatPtr(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
