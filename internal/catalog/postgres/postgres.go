// Package postgres provides a catalog.Store backed by a PostgreSQL database,
// for deployments that manage the phrase catalog centrally.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

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
    id          BIGINT PRIMARY KEY,
    category_id TEXT NOT NULL DEFAULT '',
    phrase      TEXT NOT NULL,
    translation TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_phrases_category ON phrases(category_id);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a catalog.Store backed by a PostgreSQL database.
type Store struct {
	db DB
}

// Compile-time interface check.
var _ catalog.Store = (*Store)(nil)

// New creates a Store over the given connection or pool. The caller is
// responsible for calling [Store.Migrate] to ensure the schema exists before
// issuing queries.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// catalog tables and indexes if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Seed upserts the given categories and phrases, used to load a starter
// catalog into a fresh database.
func (s *Store) Seed(ctx context.Context, categories []catalog.Category, phrases []catalog.Phrase) error {
	for i, c := range categories {
		_, err := s.db.Exec(ctx, `
			INSERT INTO categories (id, name, description, icon, language, position)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, description = EXCLUDED.description,
				icon = EXCLUDED.icon, language = EXCLUDED.language,
				position = EXCLUDED.position`,
			c.ID, c.Name, c.Description, c.Icon, c.Language, i)
		if err != nil {
			return fmt.Errorf("postgres: seed category %q: %w", c.ID, err)
		}
	}
	for _, p := range phrases {
		_, err := s.db.Exec(ctx, `
			INSERT INTO phrases (id, category_id, phrase, translation)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				category_id = EXCLUDED.category_id, phrase = EXCLUDED.phrase,
				translation = EXCLUDED.translation`,
			p.ID, p.CategoryID, p.Text, p.Translation)
		if err != nil {
			return fmt.Errorf("postgres: seed phrase %d: %w", p.ID, err)
		}
	}
	return nil
}

func (s *Store) Categories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, icon, language FROM categories ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query categories: %w", err)
	}
	defer rows.Close()

	var out []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Language); err != nil {
			return nil, fmt.Errorf("postgres: scan category: %w", err)
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
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, categoryID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("postgres: check category: %w", err)
	}
	if !exists {
		return nil, catalog.ErrCategoryNotFound
	}
	return s.queryPhrases(ctx,
		`SELECT id, category_id, phrase, translation FROM phrases WHERE category_id = $1 ORDER BY id`,
		categoryID)
}

func (s *Store) Phrase(ctx context.Context, id int64) (catalog.Phrase, error) {
	var p catalog.Phrase
	err := s.db.QueryRow(ctx,
		`SELECT id, category_id, phrase, translation FROM phrases WHERE id = $1`, id).
		Scan(&p.ID, &p.CategoryID, &p.Text, &p.Translation)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Phrase{}, catalog.ErrPhraseNotFound
	}
	if err != nil {
		return catalog.Phrase{}, fmt.Errorf("postgres: query phrase %d: %w", id, err)
	}
	return p, nil
}

func (s *Store) queryPhrases(ctx context.Context, query string, args ...any) ([]catalog.Phrase, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query phrases: %w", err)
	}
	defer rows.Close()

	var out []catalog.Phrase
	for rows.Next() {
		var p catalog.Phrase
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Text, &p.Translation); err != nil {
			return nil, fmt.Errorf("postgres: scan phrase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
