// Package cube ties the dimension model (C3), cube storage (C4), query
// plan nodes (C6), the rule evaluator (C9), the cache (C10), the
// rollback log (C11), and the journal (C12) together into the cube/write
// lock surface spec.md §4 and §6 describe.
//
// A Cube owns one MixedStorage, the ordered list of Dimensions it is
// addressed by, its registered rules, and a cache keyed by fingerprints
// derived from the dimensions' change tokens. Point reads (GetCellValue)
// and rule-body Source lookups share one recursive resolver so a rule
// overlay always wins over consolidation at every level of a nested
// aggregation, matching spec.md §8 invariant 4. Area reads (GetCellArea)
// instead build a plan tree — Source, Aggregation, rule overlay,
// Rearrange — so a large query streams rather than recursing per cell.
//
// Grounded on the teacher's shard_registry.go (map-of-structs behind one
// RWMutex, exported methods taking the lock internally) for Cube and
// Database's concurrency shape.
package cube
