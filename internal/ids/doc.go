// Package ids defines the packed identifier and key-tuple primitives
// shared by every other engine package: dimension-element ids, ordered
// paths (cell keys), per-dimension sorted id sets, and cube areas built
// from them.
//
// Nothing in this package depends on dimensions, cubes, or storage — it
// is the leaf of the dependency order spec.md §2 lays out (C1).
package ids
