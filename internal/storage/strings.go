package storage

import (
	"sort"
	"sync"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/stream"
)

type strEntry struct {
	Key       ids.Path
	Surrogate float64
}

// StringStore holds the string half of a cube's base cells, keeping only
// the interned surrogate double per cell; the shared StringTable carries
// the actual text.
type StringStore struct {
	mu      sync.RWMutex
	table   *StringTable
	entries []strEntry // sorted ascending by Key
}

// NewStringStore returns an empty string store backed by table.
func NewStringStore(table *StringTable) *StringStore {
	return &StringStore{table: table}
}

func (s *StringStore) find(key ids.Path) (int, bool) {
	idx := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].Key.Less(key)
	})
	return idx, idx < len(s.entries) && s.entries[idx].Key.Equal(key)
}

// Get returns the string value at key.
func (s *StringStore) Get(key ids.Path) (string, bool) {
	s.mu.RLock()
	surrogate, hit := s.getSurrogateLocked(key)
	s.mu.RUnlock()
	if !hit {
		return "", false
	}
	return s.table.Resolve(surrogate)
}

func (s *StringStore) getSurrogateLocked(key ids.Path) (float64, bool) {
	idx, hit := s.find(key)
	if !hit {
		return 0, false
	}
	return s.entries[idx].Surrogate, true
}

// Set interns value and stores its surrogate at key.
func (s *StringStore) Set(key ids.Path, value string) {
	surrogate := s.table.Intern(value)
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, hit := s.find(key)
	if hit {
		s.entries[idx].Surrogate = surrogate
		return
	}
	entry := strEntry{Key: key.Clone(), Surrogate: surrogate}
	s.entries = append(s.entries, strEntry{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = entry
}

// Delete removes key if present.
func (s *StringStore) Delete(key ids.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, hit := s.find(key)
	if !hit {
		return
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
}

// DeleteDimensionElement removes every stored key whose coordinate at dim
// equals id.
func (s *StringStore) DeleteDimensionElement(dim int, id ids.ID) {
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
func (s *StringStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stream returns an ascending-order stream over every stored cell whose
// key lies in area.
func (s *StringStore) Stream(area ids.Area) stream.Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []stream.Record
	for _, e := range s.entries {
		if !area.Contains(e.Key) {
			continue
		}
		str, _ := s.table.Resolve(e.Surrogate)
		out = append(out, stream.Record{Key: e.Key.Clone(), Value: stream.CellValue{
			Kind: stream.String, Str: str, RuleID: stream.NoRule,
		}})
	}
	return stream.NewSliceStream(out)
}
