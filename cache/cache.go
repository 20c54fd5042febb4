// Package cache remembers the input hash of every generated module so
// unchanged modules are not rewritten.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Cache is the SQLite-backed generation cache. It is safe for concurrent use.
type Cache struct {
	db *sql.DB
}

// Open opens the cache database at path with WAL mode enabled, creating the
// file, its directory and the schema as needed.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}
	c := &Cache{db: db}
	if err := c.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Migrate creates the schema. Idempotent.
func (c *Cache) Migrate() error {
	if _, err := c.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS modules (
  name          TEXT NOT NULL,
  target        TEXT NOT NULL,
  input_hash    TEXT NOT NULL,
  generated_at  TIMESTAMP NOT NULL,
  PRIMARY KEY (name, target)
);
`

// Lookup reports whether module was last generated for target from input
// with the given hash.
func (c *Cache) Lookup(module, target, hash string) (bool, error) {
	var stored string
	err := c.db.QueryRow(`SELECT input_hash FROM modules WHERE name = ? AND target = ?`, module, target).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s/%s: %w", module, target, err)
	}
	return stored == hash, nil
}

// Store records hash as the current input of module for target.
func (c *Cache) Store(module, target, hash string) error {
	_, err := c.db.Exec(`INSERT INTO modules (name, target, input_hash, generated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name, target) DO UPDATE SET input_hash = excluded.input_hash, generated_at = excluded.generated_at`,
		module, target, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store %s/%s: %w", module, target, err)
	}
	return nil
}

// Entry is one cached module.
type Entry struct {
	Module      string
	Target      string
	Hash        string
	GeneratedAt time.Time
}

// Entries returns every cached module ordered by target and name.
func (c *Cache) Entries() ([]Entry, error) {
	rows, err := c.db.Query(`SELECT name, target, input_hash, generated_at FROM modules ORDER BY target, name`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Module, &e.Target, &e.Hash, &e.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear removes every entry and returns how many were removed.
func (c *Cache) Clear() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM modules`)
	if err != nil {
		return 0, fmt.Errorf("clear: %w", err)
	}
	return res.RowsAffected()
}
