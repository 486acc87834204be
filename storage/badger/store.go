// Copyright 2025 Normenwerk
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/normenwerk/normstore/core"
	"github.com/normenwerk/normstore/storage"
)

// TextRepository implements storage.TextStore for BadgerDB.
type TextRepository struct {
	backend *Backend
}

var _ storage.TextStore = (*TextRepository)(nil)

// NewTextRepository creates a new TextRepository on the given backend.
func NewTextRepository(backend *Backend) *TextRepository {
	return &TextRepository{backend: backend}
}

// Close closes the underlying backend.
func (r *TextRepository) Close() error {
	if r.backend.IsClosed() {
		return nil
	}
	return r.backend.Close()
}

// WithTransaction delegates to the backend.
func (r *TextRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// PutUnit inserts or overwrites a unit under its key. The primary record
// and the document-order index entry are written in one transaction.
func (r *TextRepository) PutUnit(ctx context.Context, unit *core.TextUnit) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if err := core.ValidateTextUnit(unit); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeUnitKey(unit.Key())

		old, err := r.readUnit(tx, key)
		if err != nil {
			return err
		}

		// Truncate to the serialized resolution so reads round-trip.
		now := time.Now().UTC().Truncate(time.Microsecond)
		if old != nil {
			unit.InsertedAt = old.InsertedAt
		} else {
			unit.InsertedAt = now
		}
		unit.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalTextUnit(unit)); err != nil {
			return err
		}

		// Maintain the document-order index. A re-import that shifts
		// positions may have already reassigned this unit's old slot to a
		// neighbour, so the old entry is only removed while it still
		// points at this unit.
		if old != nil && old.Position != unit.Position {
			if err := r.deletePositionEntry(tx, unit.Code, old.Position, key); err != nil {
				return err
			}
		}
		if err := tx.Set(makeUnitPositionKey(unit.Code, unit.Position), key); err != nil {
			return err
		}

		return tx.Commit()
	}, true)
}

// GetUnit retrieves a single unit by its key.
func (r *TextRepository) GetUnit(ctx context.Context, key core.UnitKey) (*core.TextUnit, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var unit *core.TextUnit
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		unit, err = r.readUnit(tx, makeUnitKey(key))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, storage.ErrNotFound
	}
	return unit, nil
}

// GetByCode retrieves every unit of a code in document order.
func (r *TextRepository) GetByCode(ctx context.Context, code string) ([]*core.TextUnit, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	units := []*core.TextUnit{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeUnitPositionPrefix(code)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var primaryKey []byte
			if err := iter.Item().Value(func(val []byte) error {
				primaryKey = slices.Clone(val)
				return nil
			}); err != nil {
				return err
			}

			unit, err := r.readUnit(tx, primaryKey)
			if err != nil {
				return err
			}
			if unit == nil {
				// stale index entry
				continue
			}
			units = append(units, unit)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return units, nil
}

// GetBySection retrieves every unit under one section of a code, in
// document order.
func (r *TextRepository) GetBySection(ctx context.Context, code, section string) ([]*core.TextUnit, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	units := []*core.TextUnit{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeSectionPrefix(code, section)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var unit *core.TextUnit
			err := iter.Item().Value(func(val []byte) error {
				var err error
				unit, err = storage.UnmarshalTextUnit(val)
				return err
			})
			if err != nil {
				return err
			}
			units = append(units, unit)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Keys sort sub-sections lexicographically, so "10" would precede "2".
	slices.SortFunc(units, func(a, b *core.TextUnit) int {
		return a.Position - b.Position
	})
	return units, nil
}

// Nearest finds the units closest to the query vector by cosine distance.
// For unit-norm vectors the distance is 1 minus the dot product. Units
// without a vector, with a mismatched dimension, or embedded by another
// model version are skipped.
func (r *TextRepository) Nearest(ctx context.Context, query storage.NearestQuery) ([]*core.ScoredUnit, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	if len(query.Vector) == 0 || query.Limit <= 0 || query.MaxDistance < 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.ScoredUnit
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeUnitPrefix(query.Code)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var unit *core.TextUnit
			err := iter.Item().Value(func(val []byte) error {
				var err error
				unit, err = storage.UnmarshalTextUnit(val)
				return err
			})
			if err != nil {
				return err
			}

			if !unit.Embedded() {
				continue
			}
			if len(unit.Vector) != len(query.Vector) {
				continue
			}
			if query.ModelVersion != "" && unit.ModelVersion != query.ModelVersion {
				continue
			}

			distance := 1 - dotProduct(query.Vector, unit.Vector)
			if distance > query.MaxDistance {
				continue
			}
			results = append(results, &core.ScoredUnit{Unit: unit, Distance: distance})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Ascending distance, document order on ties
	slices.SortFunc(results, func(a, b *core.ScoredUnit) int {
		if a.Distance < b.Distance {
			return -1
		}
		if a.Distance > b.Distance {
			return 1
		}
		return a.Unit.Position - b.Unit.Position
	})

	if len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

// ListCodes returns the distinct codes present in the store, sorted.
func (r *TextRepository) ListCodes(ctx context.Context) ([]string, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	codes := []string{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeUnitPrefix("")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Keys iterate in sorted order, so codes arrive grouped.
		for iter.Rewind(); iter.Valid(); iter.Next() {
			code := codeFromUnitKey(iter.Item().Key())
			if code == "" {
				continue
			}
			if len(codes) == 0 || codes[len(codes)-1] != code {
				codes = append(codes, code)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// CountByCode returns the number of units stored for a code.
func (r *TextRepository) CountByCode(ctx context.Context, code string) (int, error) {
	if r.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeUnitPrefix(code)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ForEachUnit calls fn for every unit in the store, in key order.
func (r *TextRepository) ForEachUnit(ctx context.Context, fn func(unit *core.TextUnit) error) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeUnitPrefix("")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var unit *core.TextUnit
			err := iter.Item().Value(func(val []byte) error {
				var err error
				unit, err = storage.UnmarshalTextUnit(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(unit); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// deletePositionEntry removes the index entry at position iff it still
// resolves to primaryKey.
func (r *TextRepository) deletePositionEntry(tx *badger.Txn, code string, position int, primaryKey []byte) error {
	indexKey := makeUnitPositionKey(code, position)
	item, err := tx.Get(indexKey)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	}

	mine := false
	if err := item.Value(func(val []byte) error {
		mine = bytes.Equal(val, primaryKey)
		return nil
	}); err != nil {
		return err
	}
	if !mine {
		return nil
	}
	return tx.Delete(indexKey)
}

// readUnit reads and unmarshals a unit; nil without error when missing.
func (r *TextRepository) readUnit(tx *badger.Txn, key []byte) (*core.TextUnit, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var unit *core.TextUnit
	err = item.Value(func(val []byte) error {
		var err error
		unit, err = storage.UnmarshalTextUnit(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return unit, nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
