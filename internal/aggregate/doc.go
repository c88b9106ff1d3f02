// Package aggregate implements consolidation (C8): a Reader that
// performs stream-mode aggregation over a base-cell child stream,
// accumulating into a hash keyed by the target (consolidated) key and
// emitting in sorted order, and the three write-side splash policies
// (equal, proportional, additive) plus the splash cell-count limit
// tiers (spec.md §4.8).
package aggregate
