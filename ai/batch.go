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

package ai

import (
	"context"
	"fmt"
	"log/slog"
)

// BatchResult holds the outcome of embedding one input text. Exactly one
// of Vector and Err is set.
type BatchResult struct {
	Vector []float32
	Err    error
}

// BatchClient embeds batches of texts with retry and failure isolation.
// When a whole batch fails after retries, the batch is split in half and
// each half embedded independently, down to single texts, so one poison
// input does not fail its neighbours.
type BatchClient struct {
	embedder Embedder
	config   *Config
	logger   *slog.Logger
}

// NewBatchClient creates a BatchClient on top of embedder. config must
// already be validated.
func NewBatchClient(embedder Embedder, config *Config) *BatchClient {
	return &BatchClient{
		embedder: embedder,
		config:   config,
		logger:   slog.Default().With("component", "batch-client"),
	}
}

// EmbedBatch embeds texts and returns one result per input, in input
// order. Individual failures are reported in the results, never as the
// returned error; the error is reserved for context cancellation.
func (bc *BatchClient) EmbedBatch(ctx context.Context, texts []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	if err := bc.embedRange(ctx, texts, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (bc *BatchClient) embedRange(ctx context.Context, texts []string, results []BatchResult) error {
	vectors, err := bc.embedWithRetry(ctx, texts)
	if err == nil {
		if len(vectors) != len(texts) {
			err = NewEmbeddingError(KindService,
				fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(vectors)))
		} else {
			for i := range texts {
				results[i] = BatchResult{Vector: vectors[i]}
			}
			return nil
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if len(texts) == 1 {
		results[0] = BatchResult{Err: ClassifyError(err)}
		return nil
	}

	// Halve the batch to isolate the failing input.
	mid := len(texts) / 2
	bc.logger.Debug("splitting failed batch", "size", len(texts), "error", err)
	if err := bc.embedRange(ctx, texts[:mid], results[:mid]); err != nil {
		return err
	}
	return bc.embedRange(ctx, texts[mid:], results[mid:])
}

func (bc *BatchClient) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, bc.config.RequestTimeout)
		defer cancel()

		var err error
		vectors, err = bc.embedder.EmbedTexts(attemptCtx, texts)
		return err
	}, bc.config.MaxRetries, bc.config.RetryDelay)
	if err != nil {
		return nil, err
	}
	return vectors, nil
}
