package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveHighlight upserts one highlight by id. Highlights are append-mostly:
// after insert only the note, the color and updated_at may change, so a
// device re-sending its full annotation list never rewrites text or
// positions.
func (d *Database) SaveHighlight(ctx context.Context, h *Highlight) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_highlight", start, err) }()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Color == "" {
		h.Color = "yellow"
	}
	now := time.Now().Unix()
	if h.CreatedAt == 0 {
		h.CreatedAt = now
	}
	if h.UpdatedAt == 0 {
		h.UpdatedAt = now
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO highlights (
			id, user_id, book_id, device_id, page, chapter, text, note,
			color, pos0, pos1, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			note = excluded.note,
			color = excluded.color,
			updated_at = excluded.updated_at`,
		h.ID, h.UserID, h.BookID, nullString(h.DeviceID), h.Page,
		nullString(h.Chapter), h.Text, nullString(h.Note), h.Color,
		nullString(h.Pos0), nullString(h.Pos1), h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		err = fmt.Errorf("saving highlight %s: %w", h.ID, err)
		return err
	}
	return nil
}

// GetHighlights returns a user's highlights for one book in page order,
// oldest first within a page.
func (d *Database) GetHighlights(ctx context.Context, userID, bookID string) ([]Highlight, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_highlights", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx, `
		SELECT id, user_id, book_id, device_id, page, chapter, text, note,
		       color, pos0, pos1, created_at, updated_at
		FROM highlights
		WHERE user_id = ? AND book_id = ?
		ORDER BY page, created_at`,
		userID, bookID)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer rows.Close()

	var list []Highlight
	for rows.Next() {
		var (
			h         Highlight
			deviceID  sql.NullString
			page      sql.NullInt64
			chapter   sql.NullString
			note      sql.NullString
			color     sql.NullString
			pos0      sql.NullString
			pos1      sql.NullString
			createdAt sql.NullInt64
			updatedAt sql.NullInt64
		)
		if err = rows.Scan(&h.ID, &h.UserID, &h.BookID, &deviceID, &page,
			&chapter, &h.Text, &note, &color, &pos0, &pos1, &createdAt,
			&updatedAt); err != nil {
			return nil, err
		}
		h.DeviceID = deviceID.String
		h.Page = int(page.Int64)
		h.Chapter = chapter.String
		h.Note = note.String
		h.Color = color.String
		h.Pos0 = pos0.String
		h.Pos1 = pos1.String
		h.CreatedAt = createdAt.Int64
		h.UpdatedAt = updatedAt.Int64
		list = append(list, h)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteHighlight removes one highlight, scoped to its owner. Returns
// false when the user has no highlight with that id.
func (d *Database) DeleteHighlight(ctx context.Context, id, userID string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_highlight", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, execErr := d.db.ExecContext(ctx,
		`DELETE FROM highlights WHERE id = ? AND user_id = ?`, id, userID)
	if execErr != nil {
		err = execErr
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SaveBookmark upserts one bookmark by id. Only the name may change after
// insert; page and position are fixed.
func (d *Database) SaveBookmark(ctx context.Context, b *Bookmark) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_bookmark", start, err) }()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt == 0 {
		b.CreatedAt = time.Now().Unix()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO bookmarks (id, user_id, book_id, page, position_data, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name`,
		b.ID, b.UserID, b.BookID, b.Page, nullString(b.PositionData),
		nullString(b.Name), b.CreatedAt,
	)
	if err != nil {
		err = fmt.Errorf("saving bookmark %s: %w", b.ID, err)
		return err
	}
	return nil
}

// GetBookmarks returns a user's bookmarks for one book in page order.
func (d *Database) GetBookmarks(ctx context.Context, userID, bookID string) ([]Bookmark, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_bookmarks", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx, `
		SELECT id, user_id, book_id, page, position_data, name, created_at
		FROM bookmarks
		WHERE user_id = ? AND book_id = ?
		ORDER BY page, created_at`,
		userID, bookID)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer rows.Close()

	var list []Bookmark
	for rows.Next() {
		var (
			b            Bookmark
			page         sql.NullInt64
			positionData sql.NullString
			name         sql.NullString
			createdAt    sql.NullInt64
		)
		if err = rows.Scan(&b.ID, &b.UserID, &b.BookID, &page,
			&positionData, &name, &createdAt); err != nil {
			return nil, err
		}
		b.Page = int(page.Int64)
		b.PositionData = positionData.String
		b.Name = name.String
		b.CreatedAt = createdAt.Int64
		list = append(list, b)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteBookmark removes one bookmark, scoped to its owner. Returns false
// when the user has no bookmark with that id.
func (d *Database) DeleteBookmark(ctx context.Context, id, userID string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_bookmark", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, execErr := d.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE id = ? AND user_id = ?`, id, userID)
	if execErr != nil {
		err = execErr
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
