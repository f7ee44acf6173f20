// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite — no CGo, no C
// compiler, works everywhere Go cross-compiles. The driver registers itself
// with database/sql under the name "sqlite" via its init() (hence the blank
// import below).
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Startup ping policy: the process must fail loudly if the store is not
// reachable, but transient slowness at boot (e.g. a volume still mounting)
// gets a bounded number of retries before we give up.
const (
	connectAttempts   = 5
	connectRetryDelay = 3 * time.Second
)

// DB wraps a sql.DB connection pool and implements both repository
// interfaces. The pool is the only shared mutable state in the process;
// sizing it is left to database/sql's defaults except for the in-memory
// case (see New).
type DB struct {
	conn *sql.DB
}

// New opens the database, verifies connectivity with bounded retries, and
// runs migrations.
//
// dbPath examples:
//   - "data/todo.db" → file-based, persistent
//   - ":memory:"     → in-memory, lost on close (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each pooled connection to ":memory:" would get its OWN empty
	// database. Clamp the pool to a single connection so every caller sees
	// the same data; database/sql queues callers when the connection is
	// busy instead of failing them.
	if strings.Contains(dbPath, ":memory:") {
		conn.SetMaxOpenConns(1)
	}

	// sql.Open does not actually connect. Ping with retries so a bad path
	// or a store that is still coming up surfaces at startup, not on the
	// first request.
	if err := pingWithRetry(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool, flushing the WAL and releasing the
// file lock.
func (db *DB) Close() error {
	return db.conn.Close()
}

// dsn appends the connection options every pooled connection needs. They
// must ride the DSN, not a one-off Exec: database/sql opens connections
// lazily, and an Exec'd PRAGMA only reaches whichever connection served it.
//
//   - _txlock=immediate: transactions take the write lock at BEGIN. The
//     reconcile transaction reads before it writes; a deferred BEGIN would
//     let two of them read concurrently and then deadlock upgrading to the
//     write lock (SQLITE_BUSY, which busy_timeout does not cover). With
//     immediate transactions, concurrent reconcilers serialize instead.
//   - busy_timeout: a writer waits for a competing transaction instead of
//     failing immediately with SQLITE_BUSY.
//   - foreign_keys: off by default in SQLite; tasks rely on ON DELETE
//     CASCADE.
//   - journal_mode WAL: reads proceed while a write is in flight.
func dsn(dbPath string) string {
	const params = "_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)"

	if strings.Contains(dbPath, "?") {
		return dbPath + "&" + params
	}
	return dbPath + "?" + params
}

func pingWithRetry(conn *sql.DB) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = conn.Ping(); err == nil {
			return nil
		}
		if attempt < connectAttempts {
			time.Sleep(connectRetryDelay)
		}
	}
	return fmt.Errorf("after %d attempts: %w", connectAttempts, err)
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this safe to
// run on every start.
//
// users: external_user_id is UNIQUE but nullable — SQLite (like Postgres)
// allows any number of NULLs under a unique index, so locally-registered
// accounts don't collide with each other. username and email are each
// globally unique; these constraints are the final arbiter of "new row vs.
// conflict" under concurrency, so no in-process locking is needed.
//
// tasks: ON DELETE CASCADE removes a user's tasks with the user.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			external_user_id INTEGER UNIQUE,
			username         TEXT NOT NULL UNIQUE,
			email            TEXT NOT NULL UNIQUE,
			hashed_password  TEXT,
			oauth_provider   TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL DEFAULT '',
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			title      TEXT NOT NULL DEFAULT '',
			completed  INTEGER NOT NULL DEFAULT 0,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating tasks table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// modernc.org/sqlite surfaces these as "constraint failed: UNIQUE
// constraint failed: <table>.<column>"; there is no exported error type to
// match on, so we match the stable message fragment.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
