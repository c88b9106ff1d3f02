// Package plan builds the query plan tree (C6): Source, Combination,
// Rearrange, Transformation, Aggregation, and Rule nodes, each of which
// is itself a stream.Stream so nodes compose by simple wrapping. Child
// construction is lazy: a node's child stream is not touched until the
// node's first Next/Move/Reset call (spec.md §4.5).
//
// Grounded on the teacher's handler-composition style in
// cmd/coordinator/main.go (route -> registry -> shard lookup, one small
// wrapper per concern) generalized to plan-node chaining; node semantics
// from original_source/molap/server/5.1/Library/Engine/TransformationProcessor.cpp
// and PaloJobs/AreaJob.cpp.
package plan
