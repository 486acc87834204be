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

package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/normenwerk/normstore/ai"
	"github.com/normenwerk/normstore/core"
	"github.com/normenwerk/normstore/storage"
)

const (
	// DefaultLimit is the result cap when the caller does not set one.
	DefaultLimit = 10

	// MaxLimit is the hard result cap; larger requests are clamped.
	MaxLimit = 100

	// DefaultCutoff is the cosine distance bound when the caller does
	// not set one. Distance ranges over [0, 2] for unit vectors.
	DefaultCutoff = float32(0.7)
)

// Result is one search hit. Similarity is 1 minus the cosine distance,
// so higher means closer.
type Result struct {
	Unit       *core.TextUnit
	Distance   float32
	Similarity float32
}

// Service answers exact structural lookups and semantic searches over
// the store.
type Service struct {
	store    storage.TextStore
	embedder ai.Embedder
	config   *ai.Config
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a retrieval service.
func NewService(store storage.TextStore, embedder ai.Embedder, config *ai.Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
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

	s := &Service{
		store:    store,
		embedder: embedder,
		config:   config,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Lookup retrieves one unit by its structural address. An empty
// subSection addresses the whole-section unit. Returns ErrCodeNotFound
// when the code has no units at all, storage.ErrNotFound when the code
// exists but the section does not.
func (s *Service) Lookup(ctx context.Context, code, section, subSection string) (*core.TextUnit, error) {
	code = core.NormalizeCode(code)

	unit, err := s.store.GetUnit(ctx, core.UnitKey{Code: code, Section: section, SubSection: subSection})
	if err == nil {
		return unit, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	count, countErr := s.store.CountByCode(ctx, code)
	if countErr != nil {
		return nil, countErr
	}
	if count == 0 {
		return nil, ErrCodeNotFound
	}
	return nil, err
}

// Units returns every unit of a code in document order.
// Returns ErrCodeNotFound when the code has no units.
func (s *Service) Units(ctx context.Context, code string) ([]*core.TextUnit, error) {
	code = core.NormalizeCode(code)

	units, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, ErrCodeNotFound
	}
	return units, nil
}

// Query answers a structural filter over one code. An empty section
// returns every unit of the code; an empty subSection returns every
// unit under the given section. Results come back in document order and
// may be empty. Returns ErrCodeNotFound when the code has no units at
// all.
func (s *Service) Query(ctx context.Context, code, section, subSection string) ([]*core.TextUnit, error) {
	code = core.NormalizeCode(code)

	count, err := s.store.CountByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrCodeNotFound
	}

	switch {
	case section == "":
		return s.store.GetByCode(ctx, code)
	case subSection == "":
		return s.store.GetBySection(ctx, code, section)
	default:
		unit, err := s.store.GetUnit(ctx, core.UnitKey{Code: code, Section: section, SubSection: subSection})
		if errors.Is(err, storage.ErrNotFound) {
			return []*core.TextUnit{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []*core.TextUnit{unit}, nil
	}
}

// Codes returns the distinct codes present in the store, sorted.
func (s *Service) Codes(ctx context.Context) ([]string, error) {
	return s.store.ListCodes(ctx)
}

// SearchOption adjusts one search call.
type SearchOption func(*searchParams)

type searchParams struct {
	code    string
	limit   int
	cutoff  float32
	monitor SearchMonitor
}

// WithCode restricts a search to one legal code. Default is all codes.
func WithCode(code string) SearchOption {
	return func(p *searchParams) {
		p.code = core.NormalizeCode(code)
	}
}

// WithLimit caps the number of results. Values above MaxLimit are
// clamped; zero and negative values fall back to DefaultLimit.
func WithLimit(limit int) SearchOption {
	return func(p *searchParams) {
		p.limit = limit
	}
}

// WithCutoff sets the cosine distance bound. Hits farther than the
// cutoff are excluded even when the limit is not reached. Values are
// clamped to the valid distance range [0, 2].
func WithCutoff(cutoff float32) SearchOption {
	return func(p *searchParams) {
		p.cutoff = cutoff
	}
}

// WithMonitor attaches a SearchMonitor to one search call.
func WithMonitor(monitor SearchMonitor) SearchOption {
	return func(p *searchParams) {
		p.monitor = monitor
	}
}

// Search embeds the query text and returns the nearest units by cosine
// distance, closest first. Only units embedded with the configured model
// version are considered. An unknown code yields an empty result set.
func (s *Service) Search(ctx context.Context, query string, opts ...SearchOption) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	params := searchParams{
		limit:   DefaultLimit,
		cutoff:  DefaultCutoff,
		monitor: &noopMonitor{},
	}
	for _, opt := range opts {
		opt(&params)
	}
	if params.limit <= 0 {
		params.limit = DefaultLimit
	}
	if params.limit > MaxLimit {
		params.limit = MaxLimit
	}
	if params.cutoff < 0 {
		params.cutoff = 0
	}
	if params.cutoff > 2 {
		params.cutoff = 2
	}
	if params.monitor == nil {
		params.monitor = &noopMonitor{}
	}

	params.monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}
	vector := ai.NormalizeVector(embedding)
	params.monitor.AfterQueryEmbedding(vector)

	scored, err := s.store.Nearest(ctx, storage.NearestQuery{
		Code:         params.code,
		Vector:       vector,
		ModelVersion: s.config.ModelVersion(),
		Limit:        params.limit,
		MaxDistance:  params.cutoff,
	})
	if err != nil {
		s.logger.Error("error querying for similar units", "err", err)
		return nil, err
	}
	params.monitor.AfterVectorSearch(scored)

	results := make([]*Result, 0, len(scored))
	for _, hit := range scored {
		results = append(results, &Result{
			Unit:       hit.Unit,
			Distance:   hit.Distance,
			Similarity: 1 - hit.Distance,
		})
	}

	params.monitor.Finish(results)
	s.logger.Debug("search finished", "code", params.code, "hits", len(results))
	return results, nil
}
