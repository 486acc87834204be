package ingestion

import "context"

// Source delivers raw statute XML documents by code. The scrape package
// provides the HTTP implementation; tests supply in-memory ones.
type Source interface {
	// FetchDocument returns the raw XML document for a legal code.
	FetchDocument(ctx context.Context, code string) ([]byte, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, code string) ([]byte, error)

func (f SourceFunc) FetchDocument(ctx context.Context, code string) ([]byte, error) {
	return f(ctx, code)
}
