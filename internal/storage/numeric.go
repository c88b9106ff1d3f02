package storage

import (
	"sort"
	"sync"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/stream"
)

// Op selects how a write combines with any existing value.
type Op int

const (
	// OpSet overwrites the cell.
	OpSet Op = iota
	// OpAdd adds to the cell's existing value (0 if empty).
	OpAdd
)

type numEntry struct {
	Key    ids.Path
	Value  float64
	RuleID int64
}

// NumericStore holds the numeric half of a cube's base cells. Entries
// are kept in a single key-sorted slice rather than a map: paths don't
// hash cheaply and the sorted order is what every Stream needs anyway.
// No library in the retrieval pack offers an ordered key-value
// container, so this is one of the few places the package reaches for a
// stdlib-only structure (DESIGN.md).
type NumericStore struct {
	mu      sync.RWMutex
	entries []numEntry // sorted ascending by Key
}

// NewNumericStore returns an empty numeric store.
func NewNumericStore() *NumericStore { return &NumericStore{} }

func (s *NumericStore) find(key ids.Path) (int, bool) {
	idx := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].Key.Less(key)
	})
	return idx, idx < len(s.entries) && s.entries[idx].Key.Equal(key)
}

// Get returns the value and rule-id (stream.NoRule if user-set) at key.
func (s *NumericStore) Get(key ids.Path) (value float64, ruleID int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, hit := s.find(key)
	if !hit {
		return 0, stream.NoRule, false
	}
	e := s.entries[idx]
	return e.Value, e.RuleID, true
}

// Set writes value at key under op, tagging it with ruleID (stream.NoRule
// for a plain user write).
func (s *NumericStore) Set(key ids.Path, value float64, ruleID int64, op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ruleID, op)
}

func (s *NumericStore) setLocked(key ids.Path, value float64, ruleID int64, op Op) {
	idx, hit := s.find(key)
	if hit {
		if op == OpAdd {
			s.entries[idx].Value += value
		} else {
			s.entries[idx].Value = value
		}
		s.entries[idx].RuleID = ruleID
		return
	}
	entry := numEntry{Key: key.Clone(), Value: value, RuleID: ruleID}
	s.entries = append(s.entries, numEntry{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = entry
}

// Delete removes key if present.
func (s *NumericStore) Delete(key ids.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, hit := s.find(key)
	if !hit {
		return
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
}

// DeleteDimensionElement removes every stored key whose coordinate at dim
// equals id, used when a dimension element is deleted (spec.md §3 "Any
// element deletion ... removes the element from every cube storage").
func (s *NumericStore) DeleteDimensionElement(dim int, id ids.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Key[dim] != id {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}

// Count returns the number of stored cells.
func (s *NumericStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SetBulk sorts rows by key, then applies each one under op against any
// existing value while holding the store's write lock for the whole
// batch; entries not named in rows are kept. Used for out-of-order
// ingestion (spec.md §4.4
// "may be called with out-of-order keys, in which case the storage
// commits at end"; SPEC_FULL.md's Open Question resolution: readers see
// either the pre-ingest or post-commit state, never an intermediate one).
func (s *NumericStore) SetBulk(rows []numEntry, op Op) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key.Less(rows[j].Key) })

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.setLocked(r.Key, r.Value, r.RuleID, op)
	}
}

// Stream returns an ascending-order stream over every stored cell whose
// key lies in area.
func (s *NumericStore) Stream(area ids.Area) stream.Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []stream.Record
	for _, e := range s.entries {
		if area.Contains(e.Key) {
			out = append(out, stream.Record{Key: e.Key.Clone(), Value: stream.CellValue{
				Kind: stream.Numeric, Num: e.Value, RuleID: e.RuleID,
			}})
		}
	}
	return stream.NewSliceStream(out)
}
