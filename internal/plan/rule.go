package plan

import "github.com/dreamware/molap/internal/stream"

// NewRule overlays one stream per applicable rule on top of child, in
// the order rules are evaluated: later rule streams replace the
// underlying value at any key they also produce (spec.md §4.5 "Rule:
// Replaces values at cells inside the rule's target area by evaluating
// the AST against the underlying plan"; §4.9 "rules are tried in
// order"). Each ruleStream is expected to enumerate its own target area
// in ascending key order — internal/rule's evaluator builds exactly that
// kind of stream, lazily evaluating the AST against child for any Source
// reference.
//
// A Rule node is therefore just a Combination with the rule overlays
// listed last, reusing the same later-wins merge semantics rather than
// a bespoke overlay mechanism.
func NewRule(child stream.Stream, ruleStreams ...stream.Stream) stream.Stream {
	return NewCombination(append([]stream.Stream{child}, ruleStreams...)...)
}
