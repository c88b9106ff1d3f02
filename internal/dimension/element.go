package dimension

import "github.com/dreamware/molap/internal/ids"

// Kind classifies an element's role in the hierarchy.
type Kind int

const (
	// Numeric is a base (leaf) element holding numeric cell values.
	Numeric Kind = iota
	// String is a base (leaf) element holding string cell values.
	String
	// Consolidated is a non-leaf element whose value is the weighted sum
	// of its children's values. Consolidated elements never appear as a
	// stored cell coordinate; children() == ∅ iff Kind is Numeric or
	// String (spec.md §3 invariant).
	Consolidated
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case String:
		return "string"
	case Consolidated:
		return "consolidated"
	default:
		return "unknown"
	}
}

// IsBase reports whether the kind is a leaf kind (numeric or string).
func (k Kind) IsBase() bool { return k == Numeric || k == String }

// Element is a single member of a Dimension.
type Element struct {
	// ID is unique within the owning dimension.
	ID ids.ID
	// Name is unique within the owning dimension; lookup by name is O(1).
	Name string
	// Position is a dense, client-settable ordering within the dimension.
	Position int
	// Kind is Numeric, String, or Consolidated.
	Kind Kind

	// Level is the longest path to a leaf among descendants (0 for leaves).
	Level int
	// Depth is the longest path from a root (0 for roots).
	Depth int
	// Indent is the first-parent chain length from a root (0 for roots).
	Indent int
}

// clone returns a value copy; Element is small and has no reference
// fields worth sharing, so callers receiving one from the dimension own
// it outright.
func (e Element) clone() Element { return e }
