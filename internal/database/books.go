package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"folio/internal/apperr"
	"folio/internal/formats"
)

const bookColumns = `id, library_id, file_hash, title, author, authors_json,
	description, publisher, published, language, isbn, series, series_index,
	tags_json, path, format, file_size, mtime, page_count, cover_cached,
	created_at, updated_at`

// SaveBook inserts or updates one catalog row, keyed by the path-derived
// book id. On conflict every column is replaced except library_id, format
// and created_at, which are fixed at first insert.
func (d *Database) SaveBook(ctx context.Context, b *Book) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_book", start, err) }()

	if b.Author == "" && len(b.Authors) > 0 {
		b.Author = strings.Join(b.Authors, ", ")
	}
	now := time.Now().Unix()
	if b.CreatedAt == 0 {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO books (
			id, library_id, file_hash, title, author, authors_json,
			description, publisher, published, language, isbn, series,
			series_index, tags_json, path, format, file_size, mtime,
			page_count, cover_cached, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_hash = excluded.file_hash,
			title = excluded.title,
			author = excluded.author,
			authors_json = excluded.authors_json,
			description = excluded.description,
			publisher = excluded.publisher,
			published = excluded.published,
			language = excluded.language,
			isbn = excluded.isbn,
			series = excluded.series,
			series_index = excluded.series_index,
			tags_json = excluded.tags_json,
			path = excluded.path,
			file_size = excluded.file_size,
			mtime = excluded.mtime,
			page_count = excluded.page_count,
			cover_cached = excluded.cover_cached,
			updated_at = excluded.updated_at`,
		b.ID, b.LibraryID, nullString(b.FileHash), b.Title,
		nullString(b.Author), marshalStrings(b.Authors),
		nullString(b.Description), nullString(b.Publisher),
		nullString(b.Published), nullString(b.Language), nullString(b.ISBN),
		nullString(b.Series), nullFloat(b.SeriesIndex),
		marshalStrings(b.Tags), b.Path, string(b.Format), b.FileSize,
		b.Mtime, nullInt(b.PageCount), boolToInt(b.CoverCached),
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		err = fmt.Errorf("saving book %s: %w", b.ID, err)
		return err
	}
	return nil
}

// GetBook returns one catalog row, or ErrNotFound.
func (d *Database) GetBook(ctx context.Context, id string) (*Book, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_book", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	b, scanErr := scanBook(d.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: book %s", apperr.ErrNotFound, id)
		} else {
			err = fmt.Errorf("loading book %s: %w", id, scanErr)
		}
		return nil, err
	}
	return b, nil
}

// GetBookCount returns the number of rows in the catalog.
func (d *Database) GetBookCount(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_book_count", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int
	if err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetLibraryBooks returns every book in one library, ordered by title.
func (d *Database) GetLibraryBooks(ctx context.Context, libraryID string) ([]Book, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_library_books", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE library_id = ? ORDER BY title COLLATE NOCASE`,
		libraryID)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer rows.Close()

	books, err := collectBooks(rows)
	return books, err
}

// GetAllBooks returns the whole catalog ordered by title. The mirror
// rebuild is the main caller.
func (d *Database) GetAllBooks(ctx context.Context) ([]Book, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_all_books", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY title COLLATE NOCASE`)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer rows.Close()

	books, err := collectBooks(rows)
	return books, err
}

// GetLibraryFileIndex returns the change-detection index for one library,
// keyed by absolute file path.
func (d *Database) GetLibraryFileIndex(ctx context.Context, libraryID string) (map[string]FileStamp, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_library_file_index", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx,
		`SELECT path, id, file_size, mtime FROM books WHERE library_id = ?`, libraryID)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer rows.Close()

	index := make(map[string]FileStamp)
	for rows.Next() {
		var (
			path  string
			stamp FileStamp
		)
		if err = rows.Scan(&path, &stamp.ID, &stamp.Size, &stamp.Mtime); err != nil {
			return nil, err
		}
		index[path] = stamp
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return index, nil
}

// DeleteBooksNotIn removes every book in the library whose id is not in
// keepIDs and returns the number of rows deleted.
//
// An empty keepIDs is a no-op: a walk that found no files must never prune
// the whole library, it far more likely means the mount is missing.
func (d *Database) DeleteBooksNotIn(ctx context.Context, libraryID string, keepIDs []string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_books_not_in", start, err) }()

	if len(keepIDs) == 0 {
		return 0, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepIDs)), ",")
	args := make([]any, 0, len(keepIDs)+1)
	args = append(args, libraryID)
	for _, id := range keepIDs {
		args = append(args, id)
	}

	res, execErr := d.db.ExecContext(ctx,
		`DELETE FROM books WHERE library_id = ? AND id NOT IN (`+placeholders+`)`,
		args...)
	if execErr != nil {
		err = fmt.Errorf("pruning library %s: %w", libraryID, execErr)
		return 0, err
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

// SetCoverCached flags whether the book's cover has been extracted to the
// cover cache directory.
func (d *Database) SetCoverCached(ctx context.Context, id string, cached bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_cover_cached", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		`UPDATE books SET cover_cached = ? WHERE id = ?`, boolToInt(cached), id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(r rowScanner) (*Book, error) {
	var (
		b           Book
		fileHash    sql.NullString
		author      sql.NullString
		authorsJSON sql.NullString
		description sql.NullString
		publisher   sql.NullString
		published   sql.NullString
		language    sql.NullString
		isbn        sql.NullString
		series      sql.NullString
		seriesIndex sql.NullFloat64
		tagsJSON    sql.NullString
		format      string
		pageCount   sql.NullInt64
		coverCached sql.NullInt64
		createdAt   sql.NullInt64
		updatedAt   sql.NullInt64
	)
	if err := r.Scan(&b.ID, &b.LibraryID, &fileHash, &b.Title, &author,
		&authorsJSON, &description, &publisher, &published, &language,
		&isbn, &series, &seriesIndex, &tagsJSON, &b.Path, &format,
		&b.FileSize, &b.Mtime, &pageCount, &coverCached, &createdAt,
		&updatedAt); err != nil {
		return nil, err
	}
	b.FileHash = fileHash.String
	b.Author = author.String
	b.Authors = unmarshalStrings(authorsJSON)
	b.Description = description.String
	b.Publisher = publisher.String
	b.Published = published.String
	b.Language = language.String
	b.ISBN = isbn.String
	b.Series = series.String
	b.SeriesIndex = seriesIndex.Float64
	b.Tags = unmarshalStrings(tagsJSON)
	b.Format = formats.Format(format)
	b.PageCount = int(pageCount.Int64)
	b.CoverCached = coverCached.Int64 != 0
	b.CreatedAt = createdAt.Int64
	b.UpdatedAt = updatedAt.Int64
	return &b, nil
}

func collectBooks(rows *sql.Rows) ([]Book, error) {
	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// marshalStrings renders a slice as its JSON column value; empty slices
// store as NULL.
func marshalStrings(s []string) any {
	if len(s) == 0 {
		return nil
	}
	b, _ := json.Marshal(s)
	return string(b)
}

func unmarshalStrings(col sql.NullString) []string {
	if !col.Valid || col.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(col.String), &out); err != nil {
		return nil
	}
	return out
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return int64(n)
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

func nullUnix(ts int64) any {
	if ts == 0 {
		return nil
	}
	return ts
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
