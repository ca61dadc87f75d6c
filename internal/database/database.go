package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"folio/internal/logging"
	"folio/internal/metrics"
)

// defaultTimeout bounds every individual query so a stuck statement cannot
// wedge an HTTP handler or a scan worker.
const defaultTimeout = 5 * time.Second

// Database wraps the SQLite connection pool behind typed accessors for the
// catalog (books, libraries), accounts (users, sessions) and reading state
// (progress, highlights, bookmarks, SDR backups, devices).
//
// SQLite allows one writer at a time; the RWMutex serializes writes at the
// application level so concurrent scan workers and sync handlers queue here
// instead of tripping SQLITE_BUSY.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	display_name TEXT,
	role TEXT NOT NULL DEFAULT 'user',
	created_at INTEGER,
	last_login INTEGER
);

CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	device_id TEXT,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS libraries (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	is_public INTEGER DEFAULT 1,
	owner_id TEXT REFERENCES users(id) ON DELETE SET NULL,
	created_at INTEGER
);

CREATE TABLE IF NOT EXISTS library_access (
	user_id TEXT NOT NULL,
	library_id TEXT NOT NULL,
	can_write INTEGER DEFAULT 0,
	PRIMARY KEY (user_id, library_id)
);

CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY,
	library_id TEXT NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
	file_hash TEXT,
	title TEXT NOT NULL,
	author TEXT,
	authors_json TEXT,
	description TEXT,
	publisher TEXT,
	published TEXT,
	language TEXT,
	isbn TEXT,
	series TEXT,
	series_index REAL,
	tags_json TEXT,
	path TEXT NOT NULL,
	format TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	mtime INTEGER NOT NULL DEFAULT 0,
	page_count INTEGER,
	cover_cached INTEGER DEFAULT 0,
	created_at INTEGER,
	updated_at INTEGER
);

CREATE TABLE IF NOT EXISTS reading_progress (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	book_id TEXT NOT NULL,
	device_id TEXT NOT NULL,
	current_page INTEGER,
	total_pages INTEGER,
	percentage REAL,
	current_chapter TEXT,
	position_data TEXT,
	status TEXT DEFAULT 'reading',
	started_at INTEGER,
	finished_at INTEGER,
	updated_at INTEGER NOT NULL,
	UNIQUE (user_id, book_id, device_id)
);

CREATE TABLE IF NOT EXISTS highlights (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	book_id TEXT NOT NULL,
	device_id TEXT,
	page INTEGER,
	chapter TEXT,
	text TEXT NOT NULL,
	note TEXT,
	color TEXT DEFAULT 'yellow',
	pos0 TEXT,
	pos1 TEXT,
	created_at INTEGER,
	updated_at INTEGER
);

CREATE TABLE IF NOT EXISTS bookmarks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	book_id TEXT NOT NULL,
	page INTEGER,
	position_data TEXT,
	name TEXT,
	created_at INTEGER
);

CREATE TABLE IF NOT EXISTS devices (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT,
	model TEXT,
	last_seen INTEGER
);

CREATE TABLE IF NOT EXISTS sdr_backups (
	user_id TEXT NOT NULL,
	book_id TEXT NOT NULL,
	data BLOB NOT NULL,
	last_page INTEGER,
	percent_finished REAL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, book_id)
);

CREATE INDEX IF NOT EXISTS idx_books_library ON books(library_id);
CREATE INDEX IF NOT EXISTS idx_books_file_hash ON books(file_hash);
CREATE INDEX IF NOT EXISTS idx_progress_user_book ON reading_progress(user_id, book_id);
CREATE INDEX IF NOT EXISTS idx_highlights_user_book ON highlights(user_id, book_id);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_sdr_user ON sdr_backups(user_id);
`

// New opens (creating if necessary) the SQLite database at dbPath, applies
// the schema and any pending migrations, and returns the ready store.
func New(ctx context.Context, dbPath string) (*Database, error) {
	diagnosePermissions(dbPath)

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, dbPath: dbPath}
	if err := d.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logging.Info("Database ready at %s", dbPath)
	return d, nil
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the filesystem path of the main database file.
func (d *Database) Path() string {
	return d.dbPath
}

func (d *Database) initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := d.db.ExecContext(initCtx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if err := d.runMigrations(initCtx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// runMigrations applies additive column migrations for databases created by
// older releases. Each check probes pragma_table_info so reruns are cheap
// no-ops.
func (d *Database) runMigrations(ctx context.Context) error {
	// Databases that predate incremental scanning lack books.mtime.
	var hasMtime bool
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) > 0 FROM pragma_table_info('books') WHERE name = 'mtime'`,
	).Scan(&hasMtime)
	if err != nil {
		return fmt.Errorf("checking books.mtime: %w", err)
	}
	if !hasMtime {
		logging.Info("Migrating database: adding books.mtime")
		if _, err := d.db.ExecContext(ctx,
			`ALTER TABLE books ADD COLUMN mtime INTEGER NOT NULL DEFAULT 0`,
		); err != nil {
			return fmt.Errorf("adding books.mtime: %w", err)
		}
	}

	// highlights.updated_at arrived together with editable notes and colors.
	var hasUpdatedAt bool
	err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) > 0 FROM pragma_table_info('highlights') WHERE name = 'updated_at'`,
	).Scan(&hasUpdatedAt)
	if err != nil {
		return fmt.Errorf("checking highlights.updated_at: %w", err)
	}
	if !hasUpdatedAt {
		logging.Info("Migrating database: adding highlights.updated_at")
		if _, err := d.db.ExecContext(ctx,
			`ALTER TABLE highlights ADD COLUMN updated_at INTEGER`,
		); err != nil {
			return fmt.Errorf("adding highlights.updated_at: %w", err)
		}
		if _, err := d.db.ExecContext(ctx,
			`UPDATE highlights SET updated_at = created_at WHERE updated_at IS NULL`,
		); err != nil {
			return fmt.Errorf("backfilling highlights.updated_at: %w", err)
		}
	}

	return nil
}

// DBStats is a point-in-time snapshot of pool and file-size figures.
type DBStats struct {
	OpenConnections int
	MainSize        int64
	WALSize         int64
	SHMSize         int64
}

// Stats reports the current connection count and on-disk sizes of the
// database files. Sidecar files that do not exist report zero.
func (d *Database) Stats(ctx context.Context) (DBStats, error) {
	if err := ctx.Err(); err != nil {
		return DBStats{}, err
	}

	s := DBStats{OpenConnections: d.db.Stats().OpenConnections}
	for _, f := range []struct {
		suffix string
		size   *int64
	}{
		{"", &s.MainSize},
		{"-wal", &s.WALSize},
		{"-shm", &s.SHMSize},
	} {
		if info, err := os.Stat(d.dbPath + f.suffix); err == nil {
			*f.size = info.Size()
		}
	}
	return s, nil
}

// UpdateMetrics refreshes the database gauges. Called periodically while
// the metrics server is enabled.
func (d *Database) UpdateMetrics() {
	s, err := d.Stats(context.Background())
	if err != nil {
		return
	}
	metrics.DBConnectionsOpen.Set(float64(s.OpenConnections))
	metrics.DBSizeBytes.WithLabelValues("main").Set(float64(s.MainSize))
	metrics.DBSizeBytes.WithLabelValues("wal").Set(float64(s.WALSize))
	metrics.DBSizeBytes.WithLabelValues("shm").Set(float64(s.SHMSize))
}

// recordQuery feeds the per-operation counters and latency histogram.
// Deferred at the top of every store operation.
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// diagnosePermissions checks for the common container permission problems
// before the first open, so failures surface as actionable log lines
// instead of an opaque "unable to open database file".
func diagnosePermissions(dbPath string) {
	dir := filepath.Dir(dbPath)

	info, err := os.Stat(dir)
	if err != nil {
		logging.Warn("Database directory %s is not accessible: %v", dir, err)
		return
	}
	if !info.IsDir() {
		logging.Warn("Database parent %s is not a directory", dir)
		return
	}

	probe := filepath.Join(dir, ".folio-write-test")
	if f, err := os.Create(probe); err != nil {
		logging.Warn("Database directory %s is not writable: %v", dir, err)
	} else {
		f.Close()
		os.Remove(probe)
	}

	// WAL mode needs the sidecar files writable too. A root-owned -wal left
	// behind by a previous container run is the usual culprit.
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0200 == 0 {
			logging.Warn("%s is read-only (mode %v), attempting chmod", p, info.Mode().Perm())
			if err := os.Chmod(p, 0644); err != nil {
				logging.Error("Cannot fix permissions on %s: %v", p, err)
			}
		}
	}
}
