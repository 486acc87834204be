package reembed

import "errors"

var (
	// ErrEmbeddingIncomplete is returned when one or more units could not
	// be embedded. Nothing is written in that case; the store keeps the
	// previous model's vectors.
	ErrEmbeddingIncomplete = errors.New("embedding incomplete, no units were rewritten")
)
