package transform

import (
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/stream"
)

// DimMapping maps one source dimension ordinal to one target dimension
// ordinal (spec.md §4.7 "Mapped: 1:1 with a source dimension").
type DimMapping struct {
	SourceOrdinal int
	TargetOrdinal int
}

// Expansion names a target dimension that iterates a set the source
// does not carry; every input record is fanned out once per element of
// Elements (spec.md §4.7 "Expansion").
type Expansion struct {
	TargetOrdinal int
	Elements      *ids.Set
}

// MultiMap fans a single source id into a set of target ids for one
// mapped dimension (spec.md §4.7 "per-dimension multi-map").
type MultiMap map[ids.ID]*ids.Set

// Spec fully describes one transformation: how an input record's
// dimensions map onto the output's.
type Spec struct {
	TargetDims int
	Mappings   []DimMapping
	// Singletons fixes a target dimension to one element for every
	// output record (spec.md §4.7 "Restricted-to-singleton").
	Singletons map[int]ids.ID
	Expansions []Expansion
	// MultiMaps is keyed by target ordinal; that ordinal must also
	// appear in Mappings.
	MultiMaps map[int]MultiMap
	// Factor scales every numeric output value; 0 is treated as 1.
	Factor float64
}

// Processor is the transformation stream described by spec.md §4.7: it
// consumes child's records and emits the remapped, expanded, and
// multi-map-fanned output in ascending key order.
type Processor struct {
	child stream.Stream
	spec  Spec
	out   *stream.SliceStream
}

// New builds a transformation processor over child. The child is not
// touched until the processor's first Next/Move/Reset call.
func New(child stream.Stream, spec Spec) *Processor {
	if spec.Factor == 0 {
		spec.Factor = 1
	}
	return &Processor{child: child, spec: spec}
}

func (p *Processor) ensure() {
	if p.out != nil {
		return
	}

	var records []stream.Record
	for p.child.Next() {
		srcKey := p.child.GetKey()
		val := p.child.GetValue().ScaledBy(p.spec.Factor)

		base := make(ids.Path, p.spec.TargetDims)
		for dim, id := range p.spec.Singletons {
			base[dim] = id
		}
		for _, m := range p.spec.Mappings {
			base[m.TargetOrdinal] = srcKey[m.SourceOrdinal]
		}

		candidates := make([][]ids.ID, p.spec.TargetDims)
		for dim := 0; dim < p.spec.TargetDims; dim++ {
			candidates[dim] = []ids.ID{base[dim]}
		}
		for _, m := range p.spec.Mappings {
			mm, ok := p.spec.MultiMaps[m.TargetOrdinal]
			if !ok {
				continue
			}
			if set, ok := mm[srcKey[m.SourceOrdinal]]; ok {
				candidates[m.TargetOrdinal] = set.Slice()
			}
		}
		for _, e := range p.spec.Expansions {
			candidates[e.TargetOrdinal] = e.Elements.Slice()
		}

		forEachCombination(candidates, func(combo ids.Path) {
			records = append(records, stream.Record{Key: combo.Clone(), Value: val})
		})
	}

	p.out = stream.NewSortedSliceStream(records)
}

// forEachCombination calls emit once per element of the Cartesian
// product of candidates, reusing a single scratch Path between calls
// (emit must clone it to retain it).
func forEachCombination(candidates [][]ids.ID, emit func(ids.Path)) {
	n := len(candidates)
	combo := make(ids.Path, n)
	var rec func(i int)
	rec = func(i int) {
		if i == n {
			emit(combo)
			return
		}
		for _, id := range candidates[i] {
			combo[i] = id
			rec(i + 1)
		}
	}
	rec(0)
}

func (p *Processor) Next() bool                 { p.ensure(); return p.out.Next() }
func (p *Processor) GetKey() ids.Path           { return p.out.GetKey() }
func (p *Processor) GetValue() stream.CellValue { return p.out.GetValue() }
func (p *Processor) GetDouble() float64         { return p.out.GetDouble() }

func (p *Processor) Move(key ids.Path) (found bool, ok bool) {
	p.ensure()
	return p.out.Move(key)
}

func (p *Processor) Reset() {
	p.ensure()
	p.out.Reset()
}

func (p *Processor) GetBinKey() ([]byte, error) { return nil, stream.ErrBinKeyUnsupported }
