package stream

import "github.com/dreamware/molap/internal/molaperr"

// ValueKind tags what a CellValue actually holds.
type ValueKind int

const (
	// Empty marks a cell with no stored or computed value.
	Empty ValueKind = iota
	// Numeric marks a cell holding a float64.
	Numeric
	// String marks a cell holding an interned string.
	String
	// ErrorValue marks a cell whose computation failed; the error kind
	// travels with the value so an aggregation over a partly erroneous
	// area can still emit well-formed cells for the rest (spec.md §7).
	ErrorValue
)

// CellValue is the value half of every (key, value) record flowing
// through a Stream. Zero value is Empty.
type CellValue struct {
	Kind    ValueKind
	Num     float64
	Str     string
	ErrKind molaperr.Kind

	// RuleID identifies the rule that computed this value, or -1 if the
	// value came from storage (a user write) rather than a rule overlay
	// (spec.md §3 "Cube" invariant: the numeric store tags each cell with
	// the rule that set it, or none).
	RuleID int64
}

// NoRule is the RuleID sentinel meaning "not rule-derived".
const NoRule int64 = -1

// NumberValue builds a plain numeric, non-rule cell value.
func NumberValue(v float64) CellValue {
	return CellValue{Kind: Numeric, Num: v, RuleID: NoRule}
}

// StringVal builds a plain string, non-rule cell value.
func StringVal(s string) CellValue {
	return CellValue{Kind: String, Str: s, RuleID: NoRule}
}

// ErrorVal builds an error-marked cell value.
func ErrorVal(kind molaperr.Kind) CellValue {
	return CellValue{Kind: ErrorValue, ErrKind: kind, RuleID: NoRule}
}

// EmptyValue is the canonical empty cell value.
var EmptyValue = CellValue{Kind: Empty, RuleID: NoRule}

// AsDouble returns the value's numeric interpretation: the stored number,
// 0 for Empty (spec.md §4.9 "empty cells in numeric context are treated
// as 0"), and 0 for String/ErrorValue as well (callers needing ISEMPTY/error
// detection should check Kind directly, since 0 does not distinguish them).
func (v CellValue) AsDouble() float64 {
	switch v.Kind {
	case Numeric:
		return v.Num
	case Empty:
		return 0
	default:
		return 0
	}
}

// IsEmpty reports whether the value is the Empty kind.
func (v CellValue) IsEmpty() bool { return v.Kind == Empty }

// IsError reports whether the value is an ErrorValue.
func (v CellValue) IsError() bool { return v.Kind == ErrorValue }

// ScaledBy returns a copy of v with its numeric payload multiplied by
// factor; Empty and ErrorValue pass through unchanged (spec.md §4.7
// Transformation.getValue()).
func (v CellValue) ScaledBy(factor float64) CellValue {
	if v.Kind != Numeric || factor == 1 {
		return v
	}
	out := v
	out.Num = v.Num * factor
	return out
}
