package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	_ "github.com/glebarez/go-sqlite"
)

// OpenSQLite opens the database at path and creates the session and task tables.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			status TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return db, nil
}

// SQLiteCache stores values as JSON blobs in the kv table.
type SQLiteCache[S any] struct {
	db *sql.DB
}

func NewSQLiteCache[S any](db *sql.DB) *SQLiteCache[S] {
	return &SQLiteCache[S]{db: db}
}

func (c *SQLiteCache[S]) Set(ctx context.Context, key string, val S) error {
	raw, err := sonic.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, raw)
	return err
}

func (c *SQLiteCache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	var zero S
	var raw []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var val S
	if err := sonic.Unmarshal(raw, &val); err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return val, true, nil
}

func (c *SQLiteCache[S]) Del(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (c *SQLiteCache[S]) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM kv WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *SQLiteCache[S]) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

var (
	_ Cache[int] = (*MemoryCache[int])(nil)
	_ Cache[int] = (*SQLiteCache[int])(nil)
)
