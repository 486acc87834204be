// Package ai defines the embedding abstraction used across the module.
//
// The Embedder interface hides the concrete embedding backend; the openai
// subpackage implements it against OpenAI-compatible HTTP APIs and the
// mock subpackage provides a deterministic test double. BatchClient adds
// retry with exponential backoff and per-input failure isolation on top
// of any Embedder.
package ai
