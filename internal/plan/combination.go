package plan

import (
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/stream"
)

// Combination is a k-way ordered merge of child streams where later
// streams override earlier ones on a duplicate key (spec.md §4.5), used
// to overlay a rule or cache-refresh layer on top of base storage.
type Combination struct {
	children []stream.Stream
	merged   *stream.MergeStream
}

// NewCombination builds a Combination over children, in override
// priority order (later wins on ties).
func NewCombination(children ...stream.Stream) *Combination {
	return &Combination{children: children}
}

func (c *Combination) ensure() {
	if c.merged == nil {
		c.merged = stream.NewMergeStream(c.children...)
	}
}

func (c *Combination) Next() bool                 { c.ensure(); return c.merged.Next() }
func (c *Combination) GetKey() ids.Path           { return c.merged.GetKey() }
func (c *Combination) GetValue() stream.CellValue { return c.merged.GetValue() }
func (c *Combination) GetDouble() float64         { return c.merged.GetDouble() }

func (c *Combination) Move(key ids.Path) (found bool, ok bool) {
	c.ensure()
	return c.merged.Move(key)
}

func (c *Combination) Reset() {
	c.ensure()
	c.merged.Reset()
}

func (c *Combination) GetBinKey() ([]byte, error) { return nil, stream.ErrBinKeyUnsupported }
