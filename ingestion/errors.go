package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a text store is not provided.
	ErrStoreRequired = errors.New("text store required")

	// ErrSourceRequired is returned when a document source is not provided.
	ErrSourceRequired = errors.New("document source required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrConfigRequired is returned when an AI config is not provided.
	ErrConfigRequired = errors.New("ai config required")
)
