// Package transform implements the transformation processor (C7): given
// a child cell stream, a dimension mapping, optional per-dimension
// expansion sets, optional per-mapped-dimension multi-maps, and a
// numeric scale factor, it produces the remapped, expanded, and
// fanned-out output stream a Transformation plan node wraps (spec.md
// §4.7).
package transform
