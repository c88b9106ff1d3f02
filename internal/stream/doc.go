// Package stream defines the cell-value stream contract (C5): a
// single-threaded, pull-based iterator over ascending (key, value) pairs
// that every storage and plan-node implementation in the engine produces
// and consumes (spec.md §4.4).
package stream
