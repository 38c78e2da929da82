package sqlitedb

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"github.com/gofrs/uuid/v5"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const memoryPath = ":memory:"

// pool wraps sqlitex.Pool and applies the standard pragmas and schema to
// every connection on first use.
type pool struct {
	inner *sqlitex.Pool
	path  string
}

func openPool(path string, size int) (*pool, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlitedb: path is required")
	}

	if size <= 0 {
		size = max(runtime.NumCPU(), 4)
	}

	uri := path
	if path == memoryPath {
		uri = memoryURI()
	}

	inner, err := sqlitex.NewPool(uri, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: opening %s: %w", path, err)
	}

	log.Printf("sqlite pool opened: path=%s size=%d", path, size)

	return &pool{inner: inner, path: path}, nil
}

// memoryURI names a private shared-cache database so every connection in
// the pool sees the same tables. It lives until the pool is closed.
func memoryURI() string {
	return "file:" + uuid.Must(uuid.NewV4()).String() + "?mode=memory&cache=shared"
}

func (p *pool) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: take: %w", err)
	}
	return conn, nil
}

func (p *pool) put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

func (p *pool) close() error {
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("sqlitedb: closing %s: %w", p.path, err)
	}
	log.Printf("sqlite pool closed: path=%s", p.path)
	return nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitedb: %s: %w", pragma, err)
		}
	}

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlitedb: schema: %w", err)
	}

	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	username       TEXT NOT NULL UNIQUE COLLATE NOCASE,
	email          TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash  TEXT NOT NULL,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL,
	last_login_at  INTEGER NOT NULL DEFAULT 0,
	last_active_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS items (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	text       TEXT NOT NULL DEFAULT '',
	completed  INTEGER NOT NULL DEFAULT 0,
	level      INTEGER NOT NULL DEFAULT 0,
	type       TEXT NOT NULL DEFAULT 'task',
	order_key  REAL NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS items_by_user ON items (user_id, order_key);
`
