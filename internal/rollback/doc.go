// Package rollback implements per-write-transaction undo logs (spec.md
// §4.11): a Lock accumulates (key, oldValue, ruleId) records as a cube
// write proceeds under it, replayed in reverse order to undo the
// transaction, or discarded on commit. Records stay in memory up to a
// configurable budget; past that they spill to a bbolt-backed file so an
// unusually large transaction doesn't grow the process's heap without
// bound. A background sweep, shaped after the teacher's health-monitor
// ticker loop, reclaims locks whose owner never came back to commit or
// roll back.
package rollback
