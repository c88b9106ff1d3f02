package storage

import (
	"sync"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/stream"
)

var errTypeMismatch = molaperr.Wrap(molaperr.KindInput, "MixedStorage.SetCellValue", molaperr.ErrTypeMismatch)

// MixedStorage composes a NumericStore and a StringStore behind a single
// write mutex, reading the union of both in ascending key order and
// dispatching writes by the value's kind (spec.md §4.4).
type MixedStorage struct {
	// writeMu serializes writes to this cube's storage (spec.md §5
	// "within a cube, writes are serialized by a per-cube write mutex").
	writeMu sync.Mutex

	Numeric *NumericStore
	Strings *StringStore
	Table   *StringTable
}

// NewMixedStorage returns an empty mixed storage with its own string table.
func NewMixedStorage() *MixedStorage {
	table := NewStringTable()
	return &MixedStorage{
		Numeric: NewNumericStore(),
		Strings: NewStringStore(table),
		Table:   table,
	}
}

// GetCellValues returns all stored cells intersecting area, in ascending
// key order (spec.md §4.4). Numeric and string base cells never share a
// path (a dimension's leaf kind is fixed per cell coordinate), so the
// merge never needs to arbitrate a tie between the two stores.
func (m *MixedStorage) GetCellValues(area ids.Area) stream.Stream {
	return stream.NewMergeStream(m.Numeric.Stream(area), m.Strings.Stream(area))
}

// SetCellValue writes a single base cell, dispatching by the value's
// kind. ruleID is stream.NoRule for a plain user write.
func (m *MixedStorage) SetCellValue(key ids.Path, value stream.CellValue, ruleID int64, op Op) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.setLocked(key, value, ruleID, op)
}

func (m *MixedStorage) setLocked(key ids.Path, value stream.CellValue, ruleID int64, op Op) error {
	switch value.Kind {
	case stream.Numeric:
		m.Numeric.Set(key, value.Num, ruleID, op)
	case stream.String:
		if op == OpAdd {
			return errTypeMismatch
		}
		m.Strings.Set(key, value.Str)
	case stream.Empty:
		m.Numeric.Delete(key)
		m.Strings.Delete(key)
	default:
		return errTypeMismatch
	}
	return nil
}

// SetCellValueArea writes value to every path in area under op. Used by
// the splash policies in internal/aggregate once a consolidated write has
// already been expanded into base coordinates.
func (m *MixedStorage) SetCellValueArea(paths []ids.Path, value float64, ruleID int64, op Op) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	for _, p := range paths {
		m.Numeric.Set(p, value, ruleID, op)
	}
}

// IngestStream bulk-loads in, which may arrive with out-of-order keys; all
// records are buffered and applied in one sorted pass so concurrent
// readers observe either the pre-ingest or the post-commit state, never
// an intermediate one (spec.md §9 Open Question, resolved in DESIGN.md).
func (m *MixedStorage) IngestStream(in stream.Stream, op Op) error {
	var numRows []numEntry
	var strRows []struct {
		Key   ids.Path
		Value string
	}
	for in.Next() {
		key := in.GetKey().Clone()
		v := in.GetValue()
		switch v.Kind {
		case stream.Numeric:
			numRows = append(numRows, numEntry{Key: key, Value: v.Num, RuleID: v.RuleID})
		case stream.String:
			strRows = append(strRows, struct {
				Key   ids.Path
				Value string
			}{Key: key, Value: v.Str})
		default:
			return errTypeMismatch
		}
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.Numeric.SetBulk(numRows, op)
	for _, r := range strRows {
		m.Strings.Set(r.Key, r.Value)
	}
	return nil
}

// DeleteDimensionElement removes every stored cell whose coordinate at
// dim equals id, from both stores (spec.md §3 element-deletion invariant).
func (m *MixedStorage) DeleteDimensionElement(dim int, id ids.ID) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.Numeric.DeleteDimensionElement(dim, id)
	m.Strings.DeleteDimensionElement(dim, id)
}

// ValuesCount returns the total number of stored base cells across both
// stores.
func (m *MixedStorage) ValuesCount() int {
	return m.Numeric.Count() + m.Strings.Count()
}
