package stream

import "github.com/dreamware/molap/internal/ids"

// MergeStream performs an ordered k-way merge of child streams. On a
// duplicate key the later stream in the input order wins (spec.md §4.5
// Combination: "later streams override on duplicate keys"), matching a
// Rule overlay or a cache-refresh layer stacked on top of base storage.
type MergeStream struct {
	children []Stream
	// ready[i] is true if children[i] currently has a valid record
	// positioned (i.e. its last Next/Move call returned true).
	ready []bool
	key   ids.Path
	value CellValue
	// advanced on the first Next call.
	started bool
}

// NewMergeStream builds a merge over children, in override priority
// order (later wins on ties). Each child stream is advanced to its first
// record on the merge's first Next call, not here.
func NewMergeStream(children ...Stream) *MergeStream {
	m := &MergeStream{children: children, ready: make([]bool, len(children))}
	return m
}

func (m *MergeStream) Next() bool {
	if !m.started {
		m.started = true
		for i, c := range m.children {
			m.ready[i] = c.Next()
		}
	} else {
		// advance every child that currently sits on the key we just
		// emitted, so a later call sees fresh candidates.
		for i, c := range m.children {
			if m.ready[i] && c.GetKey().Equal(m.key) {
				m.ready[i] = c.Next()
			}
		}
	}
	return m.advance()
}

// advance picks the smallest key among ready children, and among ties the
// last (highest-priority) child's value.
func (m *MergeStream) advance() bool {
	found := false
	var best ids.Path
	for i, c := range m.children {
		if !m.ready[i] {
			continue
		}
		k := c.GetKey()
		if !found || k.Less(best) {
			best = k
			found = true
		}
	}
	if !found {
		m.key, m.value = nil, EmptyValue
		return false
	}
	m.key = best
	for i, c := range m.children {
		if m.ready[i] && c.GetKey().Equal(best) {
			m.value = c.GetValue() // last matching child (highest priority) wins
		}
	}
	return true
}

func (m *MergeStream) GetKey() ids.Path   { return m.key }
func (m *MergeStream) GetValue() CellValue { return m.value }
func (m *MergeStream) GetDouble() float64  { return m.value.AsDouble() }

func (m *MergeStream) Move(key ids.Path) (found bool, ok bool) {
	anyOk := false
	for i, c := range m.children {
		f, o := c.Move(key)
		m.ready[i] = o
		if o {
			anyOk = true
		}
		_ = f
	}
	m.started = true
	if !m.advance() {
		return false, false
	}
	return m.key.Equal(key), anyOk
}

func (m *MergeStream) Reset() {
	m.started = false
	m.key, m.value = nil, EmptyValue
	for _, c := range m.children {
		c.Reset()
	}
}

func (m *MergeStream) GetBinKey() ([]byte, error) { return nil, ErrBinKeyUnsupported }
