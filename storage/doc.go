// Package storage defines the persistence abstraction for text units.
//
// The TextStore interface covers exact lookup, document-order listing,
// and brute-force vector search; the badger subpackage implements it on
// BadgerDB. Units are serialized with the MUS binary format.
package storage
