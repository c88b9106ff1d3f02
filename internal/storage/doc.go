// Package storage implements sparse cube storage (C4): a numeric store
// and a string store (via an interning surrogate table), composed into a
// MixedStorage that reads both in ascending key order and dispatches
// writes by value kind (spec.md §4.4).
//
// Adapted from the teacher's internal/storage package: the same
// Store-interface-plus-MemoryStore shape, generalized from a single
// byte-string key-value map to path-keyed, kind-aware cube cells.
package storage
