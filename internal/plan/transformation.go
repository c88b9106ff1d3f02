package plan

import (
	"github.com/dreamware/molap/internal/stream"
	"github.com/dreamware/molap/internal/transform"
)

// Transformation is a plan node wrapping internal/transform's processor
// (spec.md §4.5/§4.7).
type Transformation struct {
	*transform.Processor
}

// NewTransformation builds a Transformation node over child using spec.
func NewTransformation(child stream.Stream, spec transform.Spec) *Transformation {
	return &Transformation{Processor: transform.New(child, spec)}
}

var _ stream.Stream = (*Transformation)(nil)
