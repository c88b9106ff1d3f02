package aggregate

import (
	"encoding/binary"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/stream"
)

// LeafTarget is one (target id, weight) contribution a base leaf makes
// toward a requested output coordinate in one dimension.
type LeafTarget struct {
	ID     ids.ID
	Weight float64
}

// DimExpander maps a leaf id in one dimension to the output coordinates
// it contributes to. IdentityExpander is used for dimensions the output
// area addresses directly (no consolidation in that axis).
type DimExpander func(leaf ids.ID) []LeafTarget

// IdentityExpander contributes a leaf to exactly itself with weight 1.
func IdentityExpander(leaf ids.ID) []LeafTarget {
	return []LeafTarget{{ID: leaf, Weight: 1}}
}

// Reader performs stream-mode aggregation (spec.md §4.8): for every
// record in child, it fans the record's key out to every output
// coordinate its leaves contribute to (per-dimension, via expanders),
// sums weighted values into a hash keyed by the output key, and emits
// the result in ascending key order once child is exhausted.
//
// A leaf whose value is an error marker poisons every output coordinate
// it contributes to: the first error kind observed for that coordinate
// is preserved and further numeric contributions to it are ignored,
// matching spec.md §4.9 "a per-cell error is propagated ... so that an
// aggregation over a partially erroneous area can still emit well-formed
// cells for the rest of the area" — the poisoning is scoped to the
// coordinates the erroring leaf actually feeds, not the whole area.
type Reader struct {
	child     stream.Stream
	expanders []DimExpander
	out       *stream.SliceStream
}

// NewReader builds an aggregation reader over child using expanders, one
// per dimension of child's keys.
func NewReader(child stream.Stream, expanders []DimExpander) *Reader {
	return &Reader{child: child, expanders: expanders}
}

type accumEntry struct {
	key     ids.Path
	sum     float64
	isError bool
	errKind molaperr.Kind
}

func (r *Reader) ensure() {
	if r.out != nil {
		return
	}

	acc := make(map[string]*accumEntry)
	for r.child.Next() {
		key := r.child.GetKey()
		val := r.child.GetValue()

		lists := make([][]LeafTarget, len(r.expanders))
		for d, exp := range r.expanders {
			lists[d] = exp(key[d])
		}

		forEachTarget(lists, func(target ids.Path, weight float64) {
			k := pathKey(target)
			e, ok := acc[k]
			if !ok {
				e = &accumEntry{key: target.Clone()}
				acc[k] = e
			}
			if e.isError {
				return
			}
			if val.IsError() {
				e.isError = true
				e.errKind = val.ErrKind
				return
			}
			e.sum += val.AsDouble() * weight
		})
	}

	records := make([]stream.Record, 0, len(acc))
	for _, e := range acc {
		var v stream.CellValue
		if e.isError {
			v = stream.ErrorVal(e.errKind)
		} else {
			v = stream.NumberValue(e.sum)
		}
		records = append(records, stream.Record{Key: e.key, Value: v})
	}
	r.out = stream.NewSortedSliceStream(records)
}

// forEachTarget calls emit once per element of the Cartesian product of
// lists, with weight the product of each chosen LeafTarget's weight.
func forEachTarget(lists [][]LeafTarget, emit func(target ids.Path, weight float64)) {
	n := len(lists)
	combo := make(ids.Path, n)
	var rec func(i int, weight float64)
	rec = func(i int, weight float64) {
		if i == n {
			emit(combo, weight)
			return
		}
		for _, lt := range lists[i] {
			combo[i] = lt.ID
			rec(i+1, weight*lt.Weight)
		}
	}
	rec(0, 1)
}

func pathKey(p ids.Path) string {
	buf := make([]byte, 4*len(p))
	for i, id := range p {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(id))
	}
	return string(buf)
}

func (r *Reader) Next() bool                 { r.ensure(); return r.out.Next() }
func (r *Reader) GetKey() ids.Path           { return r.out.GetKey() }
func (r *Reader) GetValue() stream.CellValue { return r.out.GetValue() }
func (r *Reader) GetDouble() float64         { return r.out.GetDouble() }

func (r *Reader) Move(key ids.Path) (found bool, ok bool) {
	r.ensure()
	return r.out.Move(key)
}

func (r *Reader) Reset() {
	r.ensure()
	r.out.Reset()
}

func (r *Reader) GetBinKey() ([]byte, error) { return nil, stream.ErrBinKeyUnsupported }
