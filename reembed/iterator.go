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

package reembed

import (
	"context"

	"github.com/normenwerk/normstore/core"
	"github.com/normenwerk/normstore/storage"
)

const (
	// DefaultBatchSize is the default number of units to collect per batch
	DefaultBatchSize = 100
)

// UnitIterator iterates over all stored text units in batches.
type UnitIterator struct {
	store     storage.TextStore
	batchSize int
}

// NewUnitIterator creates a new unit iterator.
// batchSize: number of units to collect per batch (must be > 0)
func NewUnitIterator(store storage.TextStore, batchSize int) *UnitIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &UnitIterator{
		store:     store,
		batchSize: batchSize,
	}
}

// ForEach iterates over all units, calling fn for each full batch and
// once more for the remainder. Iteration stops on the first error.
func (it *UnitIterator) ForEach(ctx context.Context, fn func([]*core.TextUnit) error) error {
	batch := make([]*core.TextUnit, 0, it.batchSize)

	err := it.store.ForEachUnit(ctx, func(unit *core.TextUnit) error {
		batch = append(batch, unit)
		if len(batch) < it.batchSize {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]*core.TextUnit, 0, it.batchSize)
		return nil
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
