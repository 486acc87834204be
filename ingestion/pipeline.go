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

package ingestion

import (
	"bytes"
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/normenwerk/normstore/ai"
	"github.com/normenwerk/normstore/core"
	"github.com/normenwerk/normstore/parser"
	"github.com/normenwerk/normstore/storage"
)

// Pipeline orchestrates fetching, parsing, embedding, and persisting of
// legal codes. Ingestions of the same code are serialized; different
// codes may run concurrently.
type Pipeline struct {
	store   storage.TextStore
	source  Source
	batches *ai.BatchClient
	config  *ai.Config
	pool    *ants.Pool
	logger  *slog.Logger

	mu        sync.Mutex
	codeLocks map[string]*sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	store storage.TextStore,
	source Source,
	embedder ai.Embedder,
	config *ai.Config,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if source == nil {
		return nil, ErrSourceRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		return nil, ErrConfigRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:     store,
		source:    source,
		batches:   ai.NewBatchClient(embedder, config),
		config:    config,
		pool:      pool,
		logger:    slog.Default(),
		codeLocks: make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Release frees the worker pool. The pipeline must not be used afterwards.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Report summarizes one code's ingestion.
type Report struct {
	Code      string
	Created   int
	Updated   int
	Unchanged int
	Failed    int

	// FailedKeys lists units whose embedding failed; their text was not
	// persisted and a following run will retry them.
	FailedKeys []core.UnitKey

	// Warnings carries parser anomalies such as duplicate headings.
	Warnings []parser.Warning

	Duration time.Duration

	// Err is set by IngestMany when a whole code failed.
	Err error
}

// Total returns the number of units the source document yielded.
func (r *Report) Total() int {
	return r.Created + r.Updated + r.Unchanged + r.Failed
}

func (p *Pipeline) lockCode(code string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.codeLocks[code]
	if !ok {
		lock = &sync.Mutex{}
		p.codeLocks[code] = lock
	}
	return lock
}

// Ingest fetches, parses, embeds, and persists one legal code (identi-
// fiers like "bgb" or "stgb"). Re-running with unchanged source content
// writes nothing. Units whose embedding fails are skipped and reported;
// the successes still land.
func (p *Pipeline) Ingest(ctx context.Context, code string) (*Report, error) {
	code = core.NormalizeCode(code)
	if err := core.ValidateCode(code); err != nil {
		return nil, err
	}

	lock := p.lockCode(code)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	report := &Report{Code: code}

	document, err := p.source.FetchDocument(ctx, code)
	if err != nil {
		return nil, err
	}

	parsed, err := parser.Parse(bytes.NewReader(document), code)
	if err != nil {
		return nil, err
	}
	report.Warnings = parsed.Warnings

	existing, err := p.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	existingByKey := make(map[core.UnitKey]*core.TextUnit, len(existing))
	for _, unit := range existing {
		existingByKey[unit.Key()] = unit
	}

	var toEmbed []*core.TextUnit
	created := make(map[core.UnitKey]bool)

	for _, unit := range parsed.Units {
		old, ok := existingByKey[unit.Key()]
		if !ok {
			created[unit.Key()] = true
			toEmbed = append(toEmbed, unit)
			continue
		}

		if old.ContentHash == unit.ContentHash && old.Embedded() && old.ModelVersion == p.config.ModelVersion() {
			report.Unchanged++
			// Document order may shift even when the text did not.
			if old.Position != unit.Position {
				unit.Vector = old.Vector
				unit.ModelVersion = old.ModelVersion
				if err := p.store.PutUnit(ctx, unit); err != nil {
					return nil, err
				}
			}
			continue
		}

		toEmbed = append(toEmbed, unit)
	}

	if err := p.embedAndStore(ctx, toEmbed, created, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	p.logger.Info("code ingested",
		"code", code,
		"created", report.Created,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"failed", report.Failed,
		"warnings", len(report.Warnings),
		"duration", report.Duration)

	return report, nil
}

// embedAndStore embeds units in concurrent batches and persists each
// unit in its own transaction as soon as its vector is available.
func (p *Pipeline) embedAndStore(ctx context.Context, units []*core.TextUnit, created map[core.UnitKey]bool, report *Report) error {
	if len(units) == 0 {
		return nil
	}

	batchSize := p.config.BatchSize
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for start := 0; start < len(units); start += batchSize {
		end := min(start+batchSize, len(units))
		batch := units[start:end]

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			err := p.processBatch(ctx, batch, created, report, &mu)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
			break
		}
	}

	wg.Wait()
	return firstErr
}

func (p *Pipeline) processBatch(ctx context.Context, batch []*core.TextUnit, created map[core.UnitKey]bool, report *Report, mu *sync.Mutex) error {
	texts := make([]string, len(batch))
	for i, unit := range batch {
		texts[i] = unit.Text
	}

	results, err := p.batches.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	for i, unit := range batch {
		if results[i].Err != nil {
			p.logger.Warn("embedding failed, unit skipped",
				"unit", unit.Key().String(), "error", results[i].Err)
			mu.Lock()
			report.Failed++
			report.FailedKeys = append(report.FailedKeys, unit.Key())
			mu.Unlock()
			continue
		}

		unit.Vector = ai.NormalizeVector(results[i].Vector)
		unit.ModelVersion = p.config.ModelVersion()

		if err := p.store.PutUnit(ctx, unit); err != nil {
			return err
		}

		mu.Lock()
		if created[unit.Key()] {
			report.Created++
		} else {
			report.Updated++
		}
		mu.Unlock()
	}
	return nil
}

// IngestMany ingests several codes, isolating failures: one code's error
// is recorded in its report and does not stop the others.
func (p *Pipeline) IngestMany(ctx context.Context, codes []string) []*Report {
	reports := make([]*Report, 0, len(codes))
	for _, code := range codes {
		report, err := p.Ingest(ctx, code)
		if err != nil {
			p.logger.Error("code ingestion failed", "code", code, "error", err)
			report = &Report{Code: core.NormalizeCode(code), Err: err}
		}
		reports = append(reports, report)
	}
	return reports
}
