// Package ingestion drives the fetch, parse, embed, persist cycle for
// legal codes.
//
// A Pipeline pulls a code's XML from a Source, parses it into text
// units, embeds new and changed units in concurrent batches, and writes
// each unit atomically. Content hashes make re-runs cheap: a unit whose
// text did not change is never re-embedded or rewritten.
package ingestion
