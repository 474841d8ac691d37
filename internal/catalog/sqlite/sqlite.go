// Package sqlite provides a catalog.Store backed by a local SQLite database,
// for single-node deployments that want an editable catalog without running
// a database server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/speakwell-app/speakwell/internal/catalog"
)

// Schema is the SQL DDL for the catalog tables. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS categories (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon        TEXT NOT NULL DEFAULT '',
    language    TEXT NOT NULL DEFAULT 'por',
    position    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS phrases (
    id          INTEGER PRIMARY KEY,
    category_id TEXT NOT NULL DEFAULT '' REFERENCES categories(id),
    phrase      TEXT NOT NULL,
    translation TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_phrases_category ON phrases(category_id);
`

// Store is a catalog.Store backed by a SQLite database file.
type Store struct {
	db *sql.DB
}

// Compile-time interface check.
var _ catalog.Store = (*Store)(nil)

// Open opens (creating if necessary) the SQLite database at path and returns
// a Store over it. The caller must call Close when done.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: path must not be empty")
	}
	db, err := sql.Open("sqlite3", path+"?_fk=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate executes the [Schema] DDL, creating the catalog tables if they do
// not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Seed inserts the given categories and phrases, replacing rows whose IDs
// already exist. It is used to load a starter catalog into a fresh database.
func (s *Store) Seed(ctx context.Context, categories []catalog.Category, phrases []catalog.Phrase) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin seed: %w", err)
	}
	defer tx.Rollback()

	for i, c := range categories {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO categories (id, name, description, icon, language, position) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Description, c.Icon, c.Language, i)
		if err != nil {
			return fmt.Errorf("sqlite: seed category %q: %w", c.ID, err)
		}
	}
	for _, p := range phrases {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO phrases (id, category_id, phrase, translation) VALUES (?, ?, ?, ?)`,
			p.ID, p.CategoryID, p.Text, p.Translation)
		if err != nil {
			return fmt.Errorf("sqlite: seed phrase %d: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit seed: %w", err)
	}
	return nil
}

func (s *Store) Categories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, icon, language FROM categories ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query categories: %w", err)
	}
	defer rows.Close()

	var out []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Language); err != nil {
			return nil, fmt.Errorf("sqlite: scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) Phrases(ctx context.Context) ([]catalog.Phrase, error) {
	return s.queryPhrases(ctx,
		`SELECT id, category_id, phrase, translation FROM phrases ORDER BY id`)
}

func (s *Store) PhrasesByCategory(ctx context.Context, categoryID string) ([]catalog.Phrase, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE id = ?)`, categoryID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("sqlite: check category: %w", err)
	}
	if !exists {
		return nil, catalog.ErrCategoryNotFound
	}
	return s.queryPhrases(ctx,
		`SELECT id, category_id, phrase, translation FROM phrases WHERE category_id = ? ORDER BY id`,
		categoryID)
}

func (s *Store) Phrase(ctx context.Context, id int64) (catalog.Phrase, error) {
	var p catalog.Phrase
	err := s.db.QueryRowContext(ctx,
		`SELECT id, category_id, phrase, translation FROM phrases WHERE id = ?`, id).
		Scan(&p.ID, &p.CategoryID, &p.Text, &p.Translation)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Phrase{}, catalog.ErrPhraseNotFound
	}
	if err != nil {
		return catalog.Phrase{}, fmt.Errorf("sqlite: query phrase %d: %w", id, err)
	}
	return p, nil
}

func (s *Store) queryPhrases(ctx context.Context, query string, args ...any) ([]catalog.Phrase, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query phrases: %w", err)
	}
	defer rows.Close()

	var out []catalog.Phrase
	for rows.Next() {
		var p catalog.Phrase
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Text, &p.Translation); err != nil {
			return nil, fmt.Errorf("sqlite: scan phrase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
