// Package rule compiles and evaluates cube rule text (spec.md §4.9): a
// Rule binds a parsed expression tree to a target area, and Eval
// substitutes a requested cell's coordinates into the tree, resolving
// Source references against an Underlying plan. Evaluation threads an
// explicit recursion guard through every Source lookup, standing in for
// the per-thread "currently evaluating" set the original engine keeps in
// thread-local storage — Go has no equivalent, so the guard travels as a
// plain argument instead.
package rule
