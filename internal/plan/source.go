package plan

import (
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/stream"
)

// CellSource is the read capability a Source node needs from a cube's
// storage: produce all stored cells intersecting area, in ascending key
// order (spec.md §4.4 getCellValues).
type CellSource interface {
	GetCellValues(area ids.Area) stream.Stream
}

// Source wraps a storage and an area, yielding the storage's cells
// intersected with area. Its child stream is opened lazily.
type Source struct {
	storage CellSource
	area    ids.Area
	child   stream.Stream
}

// NewSource builds a Source over storage restricted to area.
func NewSource(storage CellSource, area ids.Area) *Source {
	return &Source{storage: storage, area: area}
}

func (s *Source) ensure() {
	if s.child == nil {
		s.child = s.storage.GetCellValues(s.area)
	}
}

func (s *Source) Next() bool                 { s.ensure(); return s.child.Next() }
func (s *Source) GetKey() ids.Path           { return s.child.GetKey() }
func (s *Source) GetValue() stream.CellValue { return s.child.GetValue() }
func (s *Source) GetDouble() float64         { return s.child.GetDouble() }

func (s *Source) Move(key ids.Path) (found bool, ok bool) {
	s.ensure()
	return s.child.Move(key)
}

func (s *Source) Reset() {
	s.ensure()
	s.child.Reset()
}

func (s *Source) GetBinKey() ([]byte, error) {
	s.ensure()
	return s.child.GetBinKey()
}
