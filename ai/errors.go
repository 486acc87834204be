package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies embedding failures for retry decisions and reporting.
type ErrorKind int

const (
	// KindService covers malformed responses and 5xx-style failures.
	KindService ErrorKind = iota

	// KindTimeout covers deadline and cancellation failures.
	KindTimeout

	// KindRateLimited covers throttling by the embedding service.
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "service"
	}
}

// ErrInvalidMaxAttempts indicates a non-positive retry count.
var ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")

// EmbeddingError wraps a failure from the embedding service with its kind.
type EmbeddingError struct {
	Kind ErrorKind
	Err  error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Kind, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// NewEmbeddingError wraps err with the given kind.
func NewEmbeddingError(kind ErrorKind, err error) *EmbeddingError {
	return &EmbeddingError{Kind: kind, Err: err}
}

// ClassifyError maps an embedder failure onto an EmbeddingError. Context
// deadline and cancellation errors become KindTimeout; everything else is
// KindService unless already classified.
func ClassifyError(err error) *EmbeddingError {
	if err == nil {
		return nil
	}
	var embErr *EmbeddingError
	if errors.As(err, &embErr) {
		return embErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewEmbeddingError(KindTimeout, err)
	}
	return NewEmbeddingError(KindService, err)
}
