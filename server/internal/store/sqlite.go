package store

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const sqlitePoolSize = 4

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS zset (
	key    TEXT NOT NULL,
	member TEXT NOT NULL,
	score  REAL NOT NULL,
	PRIMARY KEY (key, member)
);
CREATE INDEX IF NOT EXISTS zset_key_score ON zset (key, score);
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLite is a Backend on a local SQLite file. Sorted sets live in one table
// indexed by (key, score) so range deletes and ordered reads use the index.
// Key patterns use SQLite GLOB, which shares Redis's *, ? and [..] syntax.
type SQLite struct {
	pool *sqlitex.Pool
	path string
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// schema exists on every pooled connection.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("store: sqlite: path is required")
	}
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    sqlitePoolSize,
		PrepareConn: prepareSQLite,
	})
	if err != nil {
		return nil, fmt.Errorf("store: sqlite: opening %s: %w", path, err)
	}
	return &SQLite{pool: pool, path: path}, nil
}

func prepareSQLite(conn *sqlite.Conn) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: sqlite: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("store: sqlite: schema: %w", err)
	}
	return nil
}

// Set stores a plain string value at key.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)

	return sqlitex.Execute(conn,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		&sqlitex.ExecOptions{Args: []any{key, value}})
}

func (s *SQLite) ZAdd(ctx context.Context, key, member string, score float64) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO zset (key, member, score) VALUES (?, ?, ?)
		 ON CONFLICT(key, member) DO UPDATE SET score = excluded.score`,
		&sqlitex.ExecOptions{Args: []any{key, member, score}})
	if err != nil {
		return fmt.Errorf("store: sqlite: zadd %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) ZRemRangeByScore(ctx context.Context, key string, max float64) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM zset WHERE key = ? AND score <= ?`,
		&sqlitex.ExecOptions{Args: []any{key, max}})
	if err != nil {
		return 0, fmt.Errorf("store: sqlite: zremrangebyscore %s: %w", key, err)
	}
	return int64(conn.Changes()), nil
}

func (s *SQLite) ZRevRange(ctx context.Context, key string) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)

	members := []string{}
	err = sqlitex.Execute(conn,
		`SELECT member FROM zset WHERE key = ? ORDER BY score DESC, member DESC`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				members = append(members, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: sqlite: zrevrange %s: %w", key, err)
	}
	return members, nil
}

func (s *SQLite) ZCard(ctx context.Context, key string) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)

	var n int64
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM zset WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("store: sqlite: zcard %s: %w", key, err)
	}
	return n, nil
}

// DeleteMatching removes matching plain keys and whole sorted sets in one
// IMMEDIATE transaction and returns the number of distinct keys removed.
func (s *SQLite) DeleteMatching(ctx context.Context, pattern string) (removed int64, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("store: sqlite: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `SELECT COUNT(DISTINCT key) FROM zset WHERE key GLOB ?`,
		&sqlitex.ExecOptions{
			Args: []any{pattern},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				removed = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("store: sqlite: count %q: %w", pattern, err)
	}
	if err = sqlitex.Execute(conn, `DELETE FROM zset WHERE key GLOB ?`,
		&sqlitex.ExecOptions{Args: []any{pattern}}); err != nil {
		return 0, fmt.Errorf("store: sqlite: delete sets %q: %w", pattern, err)
	}
	if err = sqlitex.Execute(conn, `DELETE FROM kv WHERE key GLOB ?`,
		&sqlitex.ExecOptions{Args: []any{pattern}}); err != nil {
		return 0, fmt.Errorf("store: sqlite: delete keys %q: %w", pattern, err)
	}
	removed += int64(conn.Changes())
	return removed, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)
	return sqlitex.ExecuteTransient(conn, "SELECT 1", nil)
}

// Close blocks until all borrowed connections are returned.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: sqlite: closing %s: %w", s.path, err)
	}
	return nil
}
