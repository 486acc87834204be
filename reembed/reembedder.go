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
	"fmt"
	"io"
	"time"

	"github.com/normenwerk/normstore/ai"
	"github.com/normenwerk/normstore/core"
	"github.com/normenwerk/normstore/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of units to embed in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of units)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
	}
}

// Reembedder rewrites every stored unit's vector with a new embedding
// model. The operation is all or nothing: vectors for all units are
// generated first, and only when every unit embedded successfully are
// the units rewritten with the new model version. A failure leaves the
// store fully on the previous model, never mixed.
type Reembedder struct {
	store    storage.TextStore
	batches  *ai.BatchClient
	aiConfig *ai.Config
	config   *Config
	progress io.Writer
	iterator *UnitIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(store storage.TextStore, embedder ai.Embedder, aiConfig *ai.Config, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}

	return &Reembedder{
		store:    store,
		batches:  ai.NewBatchClient(embedder, aiConfig),
		aiConfig: aiConfig,
		config:   config,
		progress: progress,
		iterator: NewUnitIterator(store, config.BatchSize),
	}
}

// Run executes the reembedding operation.
func (r *Reembedder) Run(ctx context.Context) error {
	// Collect all units up front; the embed phase must finish before any
	// write happens.
	var units []*core.TextUnit
	err := r.iterator.ForEach(ctx, func(batch []*core.TextUnit) error {
		units = append(units, batch...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read units: %w", err)
	}

	if len(units) == 0 {
		fmt.Fprintf(r.progress, "No units found in database (0 units)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d units with model %q (batch size: %d)\n",
		len(units), r.aiConfig.ModelVersion(), r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, len(units)*2, r.config.ReportInterval)
	tracker.Start()

	// Phase 1: embed everything
	vectors := make([][]float32, len(units))
	for start := 0; start < len(units); start += r.config.BatchSize {
		end := min(start+r.config.BatchSize, len(units))
		batch := units[start:end]

		texts := make([]string, len(batch))
		for i, unit := range batch {
			texts[i] = unit.Text
		}

		results, err := r.batches.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i, result := range results {
			if result.Err != nil {
				return fmt.Errorf("%w: %s: %w", ErrEmbeddingIncomplete, batch[i].Key(), result.Err)
			}
			vectors[start+i] = ai.NormalizeVector(result.Vector)
		}
		tracker.Increment(len(batch))
	}

	// Phase 2: rewrite all units with the new vectors
	for i, unit := range units {
		unit.Vector = vectors[i]
		unit.ModelVersion = r.aiConfig.ModelVersion()
		if err := r.store.PutUnit(ctx, unit); err != nil {
			return fmt.Errorf("failed to rewrite unit %s: %w", unit.Key(), err)
		}
		tracker.Increment(1)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d units in %v (%.1f units/sec)\n",
		len(units), elapsed.Round(time.Second), float64(len(units))/elapsed.Seconds())

	return nil
}
