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

const userColumns = `id, username, password_hash, display_name, role, created_at, last_login`

// CreateUser inserts a new account row. The caller supplies the bcrypt
// hash; a missing ID is filled in. A duplicate username returns
// ErrInvalidFormat.
func (d *Database) CreateUser(ctx context.Context, u *User) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_user", start, err) }()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().Unix()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, display_name, role, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, NULL)`,
		u.ID, u.Username, u.PasswordHash, nullString(u.DisplayName),
		u.Role, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("%w: username %q already exists", apperr.ErrInvalidFormat, u.Username)
		}
		return err
	}
	return nil
}

// GetUserByUsername returns one account, or ErrNotFound.
func (d *Database) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_user_by_username", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u, scanErr := scanUser(d.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: user %q", apperr.ErrNotFound, username)
		} else {
			err = scanErr
		}
		return nil, err
	}
	return u, nil
}

// GetUserByID returns one account, or ErrNotFound.
func (d *Database) GetUserByID(ctx context.Context, id string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_user_by_id", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u, scanErr := scanUser(d.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: user %s", apperr.ErrNotFound, id)
		} else {
			err = scanErr
		}
		return nil, err
	}
	return u, nil
}

// ListUsers returns every account ordered by username.
func (d *Database) ListUsers(ctx context.Context) ([]User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_users", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY username COLLATE NOCASE`)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		users = append(users, *u)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUserPassword replaces a user's password hash and invalidates every
// session they hold. Returns false when the username is unknown.
func (d *Database) UpdateUserPassword(ctx context.Context, username, hash string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_user_password", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, txErr := d.db.BeginTx(ctx, nil)
	if txErr != nil {
		err = txErr
		return false, err
	}
	defer tx.Rollback()

	res, execErr := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE username = ?`, hash, username)
	if execErr != nil {
		err = execErr
		return false, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = (SELECT id FROM users WHERE username = ?)`,
		username); err != nil {
		return false, err
	}

	err = tx.Commit()
	if err != nil {
		return false, err
	}
	return true, nil
}

// TouchLastLogin records a successful login time.
func (d *Database) TouchLastLogin(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("touch_last_login", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}

// DeleteUser removes an account and everything it owns: sessions, access
// grants, reading state and devices. Libraries they owned become unowned.
// Returns false when the username is unknown.
func (d *Database) DeleteUser(ctx context.Context, username string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_user", start, err) }()

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
		`SELECT id FROM users WHERE username = ?`, username).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			return false, nil
		}
		return false, err
	}

	for _, stmt := range []string{
		`DELETE FROM sessions WHERE user_id = ?`,
		`DELETE FROM library_access WHERE user_id = ?`,
		`DELETE FROM reading_progress WHERE user_id = ?`,
		`DELETE FROM highlights WHERE user_id = ?`,
		`DELETE FROM bookmarks WHERE user_id = ?`,
		`DELETE FROM devices WHERE user_id = ?`,
		`DELETE FROM sdr_backups WHERE user_id = ?`,
		`UPDATE libraries SET owner_id = NULL WHERE owner_id = ?`,
		`DELETE FROM users WHERE id = ?`,
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

// CreateSession stores one session row. Token must already be the SHA-256
// hex digest of the bearer token.
func (d *Database) CreateSession(ctx context.Context, s *Session) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, device_id, expires_at)
		VALUES (?, ?, ?, ?)`,
		s.Token, s.UserID, nullString(s.DeviceID), s.ExpiresAt,
	)
	return err
}

// GetSession returns the session stored under the given token hash, or
// ErrNotFound. Expiry is the caller's concern.
func (d *Database) GetSession(ctx context.Context, tokenHash string) (*Session, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_session", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		s        Session
		deviceID sql.NullString
	)
	scanErr := d.db.QueryRowContext(ctx,
		`SELECT token, user_id, device_id, expires_at FROM sessions WHERE token = ?`,
		tokenHash).Scan(&s.Token, &s.UserID, &deviceID, &s.ExpiresAt)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: session", apperr.ErrNotFound)
		} else {
			err = scanErr
		}
		return nil, err
	}
	s.DeviceID = deviceID.String
	return &s, nil
}

// DeleteSession removes one session by token hash.
func (d *Database) DeleteSession(ctx context.Context, tokenHash string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, tokenHash)
	return err
}

// DeleteUserSessions removes every session a user holds and returns the
// count. Used when a password changes.
func (d *Database) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_user_sessions", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, execErr := d.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ?`, userID)
	if execErr != nil {
		err = execErr
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CleanExpiredSessions removes every session past its expiry and returns
// the count. Run hourly by the server.
func (d *Database) CleanExpiredSessions(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("clean_expired_sessions", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, execErr := d.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, time.Now().Unix())
	if execErr != nil {
		err = execErr
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanUser(r rowScanner) (*User, error) {
	var (
		u           User
		displayName sql.NullString
		createdAt   sql.NullInt64
		lastLogin   sql.NullInt64
	)
	if err := r.Scan(&u.ID, &u.Username, &u.PasswordHash, &displayName,
		&u.Role, &createdAt, &lastLogin); err != nil {
		return nil, err
	}
	u.DisplayName = displayName.String
	u.CreatedAt = createdAt.Int64
	u.LastLogin = lastLogin.Int64
	return &u, nil
}
