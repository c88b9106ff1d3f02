package plan

import (
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/stream"
)

// Permutation maps each target dimension ordinal to the source
// dimension it draws from: Permutation[i] is the source ordinal feeding
// target ordinal i (spec.md §4.6).
type Permutation []int

// Rearrange reorders the dimension axes of its child's keys into target
// order (spec.md §4.6). Reordering axes changes the lexicographic sort
// key, so — rather than the original's misplaced-dimension iterator walk
// — this implementation drains and re-sorts once on first touch: total
// emitted records equal the source record count and values are
// unchanged, only traversal order differs, exactly as spec.md requires,
// and the simplification is tractable to verify by inspection (see
// DESIGN.md).
type Rearrange struct {
	child stream.Stream
	perm  Permutation
	out   *stream.SliceStream
}

// NewRearrange builds a Rearrange over child using perm.
func NewRearrange(child stream.Stream, perm Permutation) *Rearrange {
	return &Rearrange{child: child, perm: perm}
}

func (r *Rearrange) ensure() {
	if r.out != nil {
		return
	}
	var records []stream.Record
	for r.child.Next() {
		srcKey := r.child.GetKey()
		target := make(ids.Path, len(r.perm))
		for targetDim, srcDim := range r.perm {
			target[targetDim] = srcKey[srcDim]
		}
		records = append(records, stream.Record{Key: target, Value: r.child.GetValue()})
	}
	r.out = stream.NewSortedSliceStream(records)
}

func (r *Rearrange) Next() bool                 { r.ensure(); return r.out.Next() }
func (r *Rearrange) GetKey() ids.Path           { return r.out.GetKey() }
func (r *Rearrange) GetValue() stream.CellValue { return r.out.GetValue() }
func (r *Rearrange) GetDouble() float64         { return r.out.GetDouble() }

func (r *Rearrange) Move(key ids.Path) (found bool, ok bool) {
	r.ensure()
	return r.out.Move(key)
}

func (r *Rearrange) Reset() {
	r.ensure()
	r.out.Reset()
}

func (r *Rearrange) GetBinKey() ([]byte, error) { return nil, stream.ErrBinKeyUnsupported }
