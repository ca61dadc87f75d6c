package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"folio/internal/apperr"
)

const libraryColumns = `id, name, path, is_public, owner_id, created_at`

// CreateLibrary registers a new book directory. Names are unique; a
// duplicate returns ErrInvalidFormat. A missing ID is filled in.
func (d *Database) CreateLibrary(ctx context.Context, lib *Library) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_library", start, err) }()

	if lib.ID == "" {
		lib.ID = uuid.NewString()
	}
	if lib.CreatedAt == 0 {
		lib.CreatedAt = time.Now().Unix()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var existing int
	if err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM libraries WHERE name = ?`, lib.Name).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		err = fmt.Errorf("%w: library %q already exists", apperr.ErrInvalidFormat, lib.Name)
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO libraries (id, name, path, is_public, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		lib.ID, lib.Name, lib.Path, boolToInt(lib.IsPublic),
		nullString(lib.OwnerID), lib.CreatedAt,
	)
	return err
}

// GetLibrary returns one library by id, or ErrNotFound.
func (d *Database) GetLibrary(ctx context.Context, id string) (*Library, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_library", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	lib, scanErr := scanLibrary(d.db.QueryRowContext(ctx,
		`SELECT `+libraryColumns+` FROM libraries WHERE id = ?`, id))
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: library %s", apperr.ErrNotFound, id)
		} else {
			err = scanErr
		}
		return nil, err
	}
	return lib, nil
}

// GetLibraryByName returns one library by its unique name, or ErrNotFound.
func (d *Database) GetLibraryByName(ctx context.Context, name string) (*Library, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_library_by_name", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	lib, scanErr := scanLibrary(d.db.QueryRowContext(ctx,
		`SELECT `+libraryColumns+` FROM libraries WHERE name = ?`, name))
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: library %q", apperr.ErrNotFound, name)
		} else {
			err = scanErr
		}
		return nil, err
	}
	return lib, nil
}

// ListLibraries returns every configured library ordered by name.
func (d *Database) ListLibraries(ctx context.Context) ([]Library, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_libraries", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx,
		`SELECT `+libraryColumns+` FROM libraries ORDER BY name COLLATE NOCASE`)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer rows.Close()

	libs, err := collectLibraries(rows)
	return libs, err
}

// UserLibraries returns the libraries a user may read: public ones, ones
// they own, and ones granted through library_access.
func (d *Database) UserLibraries(ctx context.Context, userID string) ([]Library, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("user_libraries", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx, `
		SELECT DISTINCT l.id, l.name, l.path, l.is_public, l.owner_id, l.created_at
		FROM libraries l
		LEFT JOIN library_access a ON a.library_id = l.id AND a.user_id = ?
		WHERE l.is_public = 1 OR l.owner_id = ? OR a.user_id IS NOT NULL
		ORDER BY l.name COLLATE NOCASE`,
		userID, userID)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer rows.Close()

	libs, err := collectLibraries(rows)
	return libs, err
}

// DeleteLibrary removes a library by name together with its books and
// access grants. Returns false when no library has that name.
//
// Books are deleted explicitly rather than via the FK cascade because the
// driver leaves foreign_keys off by default.
func (d *Database) DeleteLibrary(ctx context.Context, name string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_library", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, txErr := d.db.BeginTx(ctx, nil)
	if txErr != nil {
		err = txErr
		return false, err
	}
	defer tx.Rollback()

	var id string
	if err = tx.QueryRowContext(ctx,
		`SELECT id FROM libraries WHERE name = ?`, name).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			return false, nil
		}
		return false, err
	}

	for _, stmt := range []string{
		`DELETE FROM books WHERE library_id = ?`,
		`DELETE FROM library_access WHERE library_id = ?`,
		`DELETE FROM libraries WHERE id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, stmt, id); err != nil {
			return false, err
		}
	}

	err = tx.Commit()
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateLibraryPath repoints a library at a new directory. Returns false
// when no library has that name.
func (d *Database) UpdateLibraryPath(ctx context.Context, name, path string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_library_path", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, execErr := d.db.ExecContext(ctx,
		`UPDATE libraries SET path = ? WHERE name = ?`, path, name)
	if execErr != nil {
		err = execErr
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GrantLibraryAccess gives a user read (and optionally write) access to a
// non-public library. Granting twice updates the write flag.
func (d *Database) GrantLibraryAccess(ctx context.Context, userID, libraryID string, canWrite bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("grant_library_access", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO library_access (user_id, library_id, can_write)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, library_id) DO UPDATE SET can_write = excluded.can_write`,
		userID, libraryID, boolToInt(canWrite))
	return err
}

// RevokeLibraryAccess removes a user's grant. Returns false when there was
// no grant to remove.
func (d *Database) RevokeLibraryAccess(ctx context.Context, userID, libraryID string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("revoke_library_access", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, execErr := d.db.ExecContext(ctx,
		`DELETE FROM library_access WHERE user_id = ? AND library_id = ?`,
		userID, libraryID)
	if execErr != nil {
		err = execErr
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func scanLibrary(r rowScanner) (*Library, error) {
	var (
		lib       Library
		isPublic  sql.NullInt64
		ownerID   sql.NullString
		createdAt sql.NullInt64
	)
	if err := r.Scan(&lib.ID, &lib.Name, &lib.Path, &isPublic, &ownerID,
		&createdAt); err != nil {
		return nil, err
	}
	lib.IsPublic = isPublic.Int64 != 0
	lib.OwnerID = ownerID.String
	lib.CreatedAt = createdAt.Int64
	return &lib, nil
}

func collectLibraries(rows *sql.Rows) ([]Library, error) {
	var libs []Library
	for rows.Next() {
		lib, err := scanLibrary(rows)
		if err != nil {
			return nil, err
		}
		libs = append(libs, *lib)
	}
	return libs, rows.Err()
}
