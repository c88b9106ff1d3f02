package stream

import (
	"sort"

	"github.com/dreamware/molap/internal/ids"
)

// SliceStream streams pre-materialized, key-sorted records. Storage
// implementations and tests build these directly; plan nodes mostly
// consume them through other Stream implementations instead.
type SliceStream struct {
	records []Record
	pos     int // index of the current record, -1 before the first Next, len(records) once exhausted
	started bool
}

// NewSliceStream builds a stream over records, which must already be
// sorted ascending by Key (callers that can't guarantee this should use
// NewSortedSliceStream).
func NewSliceStream(records []Record) *SliceStream {
	return &SliceStream{records: records, pos: -1}
}

// NewSortedSliceStream sorts a copy of records by key before wrapping them.
func NewSortedSliceStream(records []Record) *SliceStream {
	cp := make([]Record, len(records))
	copy(cp, records)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Key.Less(cp[j].Key) })
	return NewSliceStream(cp)
}

func (s *SliceStream) Next() bool {
	if s.pos+1 >= len(s.records) {
		s.pos = len(s.records)
		return false
	}
	s.pos++
	return true
}

func (s *SliceStream) GetKey() ids.Path {
	if s.pos < 0 || s.pos >= len(s.records) {
		return nil
	}
	return s.records[s.pos].Key
}

func (s *SliceStream) GetValue() CellValue {
	if s.pos < 0 || s.pos >= len(s.records) {
		return EmptyValue
	}
	return s.records[s.pos].Value
}

func (s *SliceStream) GetDouble() float64 { return s.GetValue().AsDouble() }

func (s *SliceStream) Move(key ids.Path) (found bool, ok bool) {
	idx := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Key.Less(key)
	})
	if idx >= len(s.records) {
		s.pos = len(s.records)
		return false, false
	}
	s.pos = idx
	return s.records[idx].Key.Equal(key), true
}

func (s *SliceStream) Reset() { s.pos = -1 }

func (s *SliceStream) GetBinKey() ([]byte, error) { return nil, ErrBinKeyUnsupported }
