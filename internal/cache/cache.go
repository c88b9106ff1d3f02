package cache

import (
	"container/list"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/dreamware/molap/internal/stream"
)

// entry is one cached plan result: the materialized records of a
// consolidated read, its estimated size in bytes, and its position in
// the LRU eviction order.
type entry struct {
	fp       Fingerprint
	records  []stream.Record
	bytes    int64
	listElem *list.Element
}

// Cache is an LRU, byte-budgeted store of plan results keyed by
// Fingerprint, modeled after the teacher's ShardRegistry: a plain
// Mutex-guarded map plus an explicit eviction order, with every
// returned slice copied so a caller can't mutate a cached entry.
type Cache struct {
	mu    sync.Mutex
	byFP  map[Fingerprint]*entry
	order *list.List // most-recently-used at Front

	byteBudget int64
	curBytes   int64

	// barrier: a read computed over fewer base cells than this isn't
	// worth the memory; it's returned but never inserted.
	barrier int64

	// clearBarrierCells/clearBarrier: an invalidation touching more cells
	// than clearBarrierCells, or clearBarrier accumulated invalidations
	// since the last clear, flushes the entire cache (spec.md §4.10).
	clearBarrierCells int64
	clearBarrier      int64
	invalidations     int64

	group singleflight.Group

	hits, misses, evictions, clears prometheus.Counter
}

// New builds a Cache. reg may be nil, in which case metrics are kept
// in-process but never exported (test isolation).
func New(byteBudget, barrier, clearBarrier, clearBarrierCells int64, reg prometheus.Registerer) *Cache {
	c := &Cache{
		byFP:              make(map[Fingerprint]*entry),
		order:             list.New(),
		byteBudget:        byteBudget,
		barrier:           barrier,
		clearBarrier:      clearBarrier,
		clearBarrierCells: clearBarrierCells,
	}
	c.hits = prometheus.NewCounter(prometheus.CounterOpts{Name: "molap_cache_hits_total"})
	c.misses = prometheus.NewCounter(prometheus.CounterOpts{Name: "molap_cache_misses_total"})
	c.evictions = prometheus.NewCounter(prometheus.CounterOpts{Name: "molap_cache_evictions_total"})
	c.clears = prometheus.NewCounter(prometheus.CounterOpts{Name: "molap_cache_clears_total"})
	if reg != nil {
		reg.MustRegister(c.hits, c.misses, c.evictions, c.clears)
	}
	return c
}

// Get returns a copy of the cached records for fp, if present.
func (c *Cache) Get(fp Fingerprint) ([]stream.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byFP[fp]
	if !ok {
		c.misses.Inc()
		return nil, false
	}
	c.order.MoveToFront(e.listElem)
	c.hits.Inc()
	return cloneRecords(e.records), true
}

// GetOrCompute returns the cached records for fp, or calls compute once
// (deduplicating concurrent callers for the same fp via singleflight)
// and admits the result if baseCellCount clears the admission barrier.
func (c *Cache) GetOrCompute(fp Fingerprint, baseCellCount int64, compute func() ([]stream.Record, error)) ([]stream.Record, error) {
	if records, ok := c.Get(fp); ok {
		return records, nil
	}

	key := strconv.FormatUint(uint64(fp), 16)
	v, err, _ := c.group.Do(key, func() (any, error) {
		if records, ok := c.Get(fp); ok {
			return records, nil
		}
		records, err := compute()
		if err != nil {
			return nil, err
		}
		if baseCellCount >= c.barrier {
			c.insert(fp, records)
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneRecords(v.([]stream.Record)), nil
}

func (c *Cache) insert(fp Fingerprint, records []stream.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.byFP[fp]; ok {
		c.order.Remove(old.listElem)
		c.curBytes -= old.bytes
		delete(c.byFP, fp)
	}

	e := &entry{fp: fp, records: cloneRecords(records), bytes: recordsSize(records)}
	e.listElem = c.order.PushFront(e)
	c.byFP[fp] = e
	c.curBytes += e.bytes

	for c.curBytes > c.byteBudget && c.order.Len() > 0 {
		back := c.order.Back()
		victim := back.Value.(*entry)
		c.order.Remove(back)
		delete(c.byFP, victim.fp)
		c.curBytes -= victim.bytes
		c.evictions.Inc()
	}
}

// Invalidate records a write touching cellsTouched cells, clearing the
// whole cache if either threshold in spec.md §4.10 is crossed.
func (c *Cache) Invalidate(cellsTouched int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cellsTouched > c.clearBarrierCells {
		c.clearLocked()
		return
	}
	c.invalidations++
	if c.invalidations >= c.clearBarrier {
		c.clearLocked()
	}
}

// Clear empties the cache unconditionally (e.g. on a dimension structural
// change, which bumps every dependent fingerprint's token anyway but is
// cheaper to just drop wholesale).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cache) clearLocked() {
	c.byFP = make(map[Fingerprint]*entry)
	c.order = list.New()
	c.curBytes = 0
	c.invalidations = 0
	c.clears.Inc()
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byFP)
}

func cloneRecords(records []stream.Record) []stream.Record {
	out := make([]stream.Record, len(records))
	for i, r := range records {
		out[i] = stream.Record{Key: r.Key.Clone(), Value: r.Value}
	}
	return out
}

func recordsSize(records []stream.Record) int64 {
	var total int64
	for _, r := range records {
		total += int64(len(r.Key))*4 + int64(len(r.Value.Str)) + 32
	}
	return total
}
