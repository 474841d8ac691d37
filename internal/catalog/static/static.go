// Package static provides an in-memory catalog.Store seeded from an embedded
// JSON file. It is the default backend and requires no external services.
package static

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/speakwell-app/speakwell/internal/catalog"
)

//go:embed phrases.json
var seedData []byte

// seed is the on-disk document shape.
type seed struct {
	Categories []catalog.Category `json:"categories"`
	Phrases    []catalog.Phrase   `json:"phrases"`
}

// Store is an immutable in-memory catalog. It is safe for concurrent use.
type Store struct {
	categories []catalog.Category
	phrases    []catalog.Phrase
	byID       map[int64]catalog.Phrase
	byCategory map[string][]catalog.Phrase
}

// Compile-time interface check.
var _ catalog.Store = (*Store)(nil)

// New builds a Store from the embedded Portuguese starter catalog.
func New() (*Store, error) {
	return fromJSON(seedData)
}

// NewFromFile builds a Store from a JSON catalog file on disk, using the same
// document shape as the embedded seed.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("static: read catalog file: %w", err)
	}
	return fromJSON(data)
}

func fromJSON(data []byte) (*Store, error) {
	var doc seed
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("static: parse catalog: %w", err)
	}
	if len(doc.Phrases) == 0 {
		return nil, catalog.ErrEmptyCatalog
	}

	s := &Store{
		categories: doc.Categories,
		phrases:    doc.Phrases,
		byID:       make(map[int64]catalog.Phrase, len(doc.Phrases)),
		byCategory: make(map[string][]catalog.Phrase),
	}
	known := make(map[string]bool, len(doc.Categories))
	for _, c := range doc.Categories {
		known[c.ID] = true
		s.byCategory[c.ID] = nil
	}
	for _, p := range doc.Phrases {
		if _, dup := s.byID[p.ID]; dup {
			return nil, fmt.Errorf("static: duplicate phrase id %d", p.ID)
		}
		if p.CategoryID != "" && !known[p.CategoryID] {
			return nil, fmt.Errorf("static: phrase %d references unknown category %q", p.ID, p.CategoryID)
		}
		s.byID[p.ID] = p
		s.byCategory[p.CategoryID] = append(s.byCategory[p.CategoryID], p)
	}
	return s, nil
}

func (s *Store) Categories(_ context.Context) ([]catalog.Category, error) {
	out := make([]catalog.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *Store) Phrases(_ context.Context) ([]catalog.Phrase, error) {
	out := make([]catalog.Phrase, len(s.phrases))
	copy(out, s.phrases)
	return out, nil
}

func (s *Store) PhrasesByCategory(_ context.Context, categoryID string) ([]catalog.Phrase, error) {
	phrases, ok := s.byCategory[categoryID]
	if !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	out := make([]catalog.Phrase, len(phrases))
	copy(out, phrases)
	return out, nil
}

func (s *Store) Phrase(_ context.Context, id int64) (catalog.Phrase, error) {
	p, ok := s.byID[id]
	if !ok {
		return catalog.Phrase{}, catalog.ErrPhraseNotFound
	}
	return p, nil
}
