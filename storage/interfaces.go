package storage

import (
	"context"

	"github.com/normenwerk/normstore/core"
)

// NearestQuery describes a vector search over one legal code.
type NearestQuery struct {
	// Code restricts the search to one legal code. Empty searches all codes.
	Code string

	// Vector is the unit-norm query embedding.
	Vector []float32

	// ModelVersion filters out units embedded with a different model.
	ModelVersion string

	// Limit caps the number of results. Must be > 0.
	Limit int

	// MaxDistance excludes results with cosine distance above it.
	// Cosine distance ranges over [0, 2] for unit vectors.
	MaxDistance float32
}

// TextStore provides operations for managing text units.
// Implementations must be thread-safe and support concurrent access.
type TextStore interface {
	// PutUnit inserts or overwrites a unit under its (code, section,
	// sub_section) key. Sets InsertedAt on first write and UpdatedAt on
	// every write. The write is atomic: text, vector, and index entries
	// land together or not at all.
	PutUnit(ctx context.Context, unit *core.TextUnit) error

	// GetUnit retrieves a single unit by its key.
	// Returns ErrNotFound if the unit doesn't exist.
	GetUnit(ctx context.Context, key core.UnitKey) (*core.TextUnit, error)

	// GetByCode retrieves every unit of a code in document order.
	// Returns an empty slice for a code with no units.
	GetByCode(ctx context.Context, code string) ([]*core.TextUnit, error)

	// GetBySection retrieves every unit under one section of a code, in
	// document order. A section without sub-section markers yields its
	// single whole-section unit. Returns an empty slice when none match.
	GetBySection(ctx context.Context, code, section string) ([]*core.TextUnit, error)

	// Nearest finds the units closest to the query vector by cosine
	// distance, ordered by ascending distance. Units without a vector,
	// with a mismatched dimension, or with a different model version are
	// skipped.
	Nearest(ctx context.Context, query NearestQuery) ([]*core.ScoredUnit, error)

	// ListCodes returns the distinct codes present in the store, sorted.
	ListCodes(ctx context.Context) ([]string, error)

	// CountByCode returns the number of units stored for a code.
	CountByCode(ctx context.Context, code string) (int, error)

	// ForEachUnit calls fn for every unit in the store, in key order.
	// Iteration stops on the first error from fn.
	ForEachUnit(ctx context.Context, fn func(unit *core.TextUnit) error) error

	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}
