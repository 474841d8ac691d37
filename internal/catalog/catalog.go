// Package catalog defines the phrase catalog model and the Store interface
// its backends implement. A catalog groups practice phrases into categories;
// every phrase carries its text and an English translation.
package catalog

import (
	"context"
	"errors"
)

// Sentinel errors returned by Store implementations.
var (
	ErrCategoryNotFound = errors.New("catalog: category not found")
	ErrPhraseNotFound   = errors.New("catalog: phrase not found")
	ErrEmptyCatalog     = errors.New("catalog: no phrases available")
)

// Category groups related phrases (e.g. greetings, restaurant vocabulary).
// Icon is a display-only hint for clients, typically an emoji.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Language    string `json:"language"`
}

// Phrase is one practice phrase. The JSON field names match the client
// contract: the text itself is exposed as "phrase".
type Phrase struct {
	ID          int64  `json:"id"`
	CategoryID  string `json:"category_id,omitempty"`
	Text        string `json:"phrase"`
	Translation string `json:"translation"`
}

// Store provides read access to the phrase catalog. Implementations must be
// safe for concurrent use.
type Store interface {
	// Categories lists all categories in stable order.
	Categories(ctx context.Context) ([]Category, error)

	// Phrases lists every phrase in the catalog in stable order.
	Phrases(ctx context.Context) ([]Phrase, error)

	// PhrasesByCategory lists the phrases of one category. Returns
	// ErrCategoryNotFound for an unknown category ID.
	PhrasesByCategory(ctx context.Context, categoryID string) ([]Phrase, error)

	// Phrase fetches a single phrase by ID. Returns ErrPhraseNotFound when
	// no phrase has the given ID.
	Phrase(ctx context.Context, id int64) (Phrase, error)
}
