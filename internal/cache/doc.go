// Package cache holds previously computed consolidated read results,
// keyed by a fingerprint over (cubeId, area-selector, plan-kind,
// relevantTokens) (spec.md §4.10). A write-heavy cube invalidates the
// whole cache once enough cells or enough individual invalidations have
// accumulated, rather than tracking per-entry staleness precisely.
package cache
