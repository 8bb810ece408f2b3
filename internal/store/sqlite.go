package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Header is one cached From lookup. HasFrom is false for messages that
// were fetched and found to carry no From header.
type Header struct {
	Namespace string `db:"namespace"`
	ID        string `db:"id"`
	From      string `db:"from_header"`
	HasFrom   bool   `db:"has_from"`
}

// Cache stores per-message From headers in a local SQLite database.
// Entries are keyed by namespace (provider and account) and message id.
type Cache struct {
	db *sqlx.DB
}

// Open opens (or creates) the cache database at dbPath and runs migrations.
func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

func migrate(db *sqlx.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS headers (
	namespace   TEXT NOT NULL,
	id          TEXT NOT NULL,
	from_header TEXT NOT NULL DEFAULT '',
	has_from    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (namespace, id)
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached entry, with found=false on a miss.
func (c *Cache) Get(ctx context.Context, namespace, id string) (h Header, found bool, err error) {
	err = c.db.GetContext(ctx, &h,
		"SELECT namespace, id, from_header, has_from FROM headers WHERE namespace = ? AND id = ?",
		namespace, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Header{}, false, nil
	}
	if err != nil {
		return Header{}, false, err
	}
	return h, true, nil
}

func (c *Cache) Put(ctx context.Context, h Header) error {
	_, err := c.db.NamedExecContext(ctx, `
		INSERT INTO headers (namespace, id, from_header, has_from)
		VALUES (:namespace, :id, :from_header, :has_from)
		ON CONFLICT(namespace, id) DO UPDATE SET
			from_header = excluded.from_header,
			has_from    = excluded.has_from
	`, h)
	return err
}

func (c *Cache) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	err := c.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM headers WHERE namespace = ?", namespace)
	return n, err
}
