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

package normstore

import (
	"log/slog"

	"github.com/normenwerk/normstore/ai"
	"github.com/normenwerk/normstore/ai/openai"
	"github.com/normenwerk/normstore/ingestion"
	"github.com/normenwerk/normstore/retrieval"
	"github.com/normenwerk/normstore/scrape"
	"github.com/normenwerk/normstore/storage"
	"github.com/normenwerk/normstore/storage/badger"
)

// Database bundles the store, the embedder, and the document source
// behind one handle. It is the entry point for embedding applications.
type Database struct {
	store    storage.TextStore
	embedder ai.Embedder
	source   ingestion.Source
	aiConfig *ai.Config
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	source   ingestion.Source
	embedder ai.Embedder
	inMemory bool
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithSource overrides the document source. Default is the public
// gesetze-im-internet.de scraper.
func WithSource(source ingestion.Source) DatabaseOption {
	return func(o *databaseOptions) {
		o.source = source
	}
}

// WithEmbedder overrides the embedder. Default is the OpenAI-compatible
// client built from the AI config.
func WithEmbedder(embedder ai.Embedder) DatabaseOption {
	return func(o *databaseOptions) {
		o.embedder = embedder
	}
}

// WithInMemory opens the store in memory instead of on disk.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// NewDatabase opens a database at filePath and wires the default
// components around it.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.aiConfig.Validate(); err != nil {
		return nil, err
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}
	store := badger.NewTextRepository(backend)

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	source := options.source
	if source == nil {
		source = scrape.NewClient()
	}

	return &Database{
		store:    store,
		embedder: embedder,
		source:   source,
		aiConfig: options.aiConfig,
		logger:   slog.Default(),
	}, nil
}

// Close closes the underlying store.
func (db *Database) Close() error {
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing store", "err", err)
		return err
	}
	return nil
}

// Store exposes the underlying text store.
func (db *Database) Store() storage.TextStore {
	return db.store
}

// AIConfig exposes the embedding configuration.
func (db *Database) AIConfig() *ai.Config {
	return db.aiConfig
}

// Embedder exposes the configured embedder.
func (db *Database) Embedder() ai.Embedder {
	return db.embedder
}

// NewIngestionPipeline wires an ingestion pipeline over this database.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(db.store, db.source, db.embedder, db.aiConfig, opts...)
}

// NewRetrievalService wires a retrieval service over this database.
func (db *Database) NewRetrievalService(opts ...retrieval.Option) (*retrieval.Service, error) {
	return retrieval.NewService(db.store, db.embedder, db.aiConfig, opts...)
}
