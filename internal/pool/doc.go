// Package pool implements the engine's fixed worker pool (C2): a
// normal-priority FIFO queue served by initSize workers, plus a
// high-priority deque served by workers grown on demand, and
// ThreadGroup, a counter-plus-wait abstraction jobs are tagged with so a
// fan-out caller can join before returning (spec.md §4.2).
//
// Grounded on the teacher's internal/coordinator.HealthMonitor (ticker +
// context + sync.WaitGroup shutdown idiom) for the goroutine-lifecycle
// shape, and on original_source/Library/Thread/ThreadPool.cpp for the
// exact priority-queue and ThreadGroup semantics the struct fields below
// are named after.
package pool
