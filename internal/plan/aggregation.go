package plan

import (
	"github.com/dreamware/molap/internal/aggregate"
	"github.com/dreamware/molap/internal/stream"
)

// Aggregation is a plan node wrapping internal/aggregate's stream-mode
// reader (spec.md §4.5/§4.8): for each consolidated coordinate in the
// output area it sums weighted base streams.
type Aggregation struct {
	*aggregate.Reader
}

// NewAggregation builds an Aggregation node over child (a base-cell
// stream) using one DimExpander per dimension of child's keys.
func NewAggregation(child stream.Stream, expanders []aggregate.DimExpander) *Aggregation {
	return &Aggregation{Reader: aggregate.NewReader(child, expanders)}
}

var _ stream.Stream = (*Aggregation)(nil)
