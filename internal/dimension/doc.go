// Package dimension implements the hierarchical dimension model (C3):
// elements, the parent/child weighted multigraph, derived per-element
// statistics (level, indent, depth), and the weighted base-element
// expansion used throughout aggregation and splashing.
//
// A Dimension owns its elements; ids are dense-ish 32-bit values. A
// deletion returns its id to a free-id set, and new elements take fresh
// ids, drawing on that set only once fresh ids run out (spec.md §3,
// §4.3). Structural mutations
// invalidate two lazily-recomputed caches (topological order and
// base-element sets) rather than recomputing them inline, matching the
// "validLevel/validBase" flags spec.md §4.3 names.
package dimension
