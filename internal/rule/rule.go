package rule

import (
	"encoding/binary"
	"math"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/rule/ast"
	"github.com/dreamware/molap/internal/rule/parser"
	"github.com/dreamware/molap/internal/stream"
)

// DimResolver looks up element ids by name for one cube, dimension by
// dimension, so a parsed Source node's bracketed names can be turned
// into concrete coordinates.
type DimResolver interface {
	// ElementID resolves name within dimension dim.
	ElementID(dim int, name string) (ids.ID, bool)
	// AllElements returns every element id of dimension dim, in
	// ascending order; used to expand an All-selector in a rule's
	// target area.
	AllElements(dim int) []ids.ID
}

// Underlying is the plan a Rule overlays: Get returns the value the rest
// of the plan (storage plus any earlier rules) produces at path. guard
// is threaded through so a rule-to-rule reference that loops back onto a
// path already being evaluated is reported as RuleCircular instead of
// recursing forever.
type Underlying interface {
	Get(path ids.Path, guard map[string]bool) (stream.CellValue, error)
}

// Rule binds a parsed expression tree to the area of cells it computes.
type Rule struct {
	ID      int64
	Text    string
	Target  ids.Area
	AST     ast.Node
	Dims    DimResolver
	NumDims int
}

// New parses text and binds it to target. id is the rule's identity,
// used as the RuleID tag on every cell value it produces.
func New(id int64, text string, target ids.Area, numDims int, dims DimResolver) (*Rule, error) {
	node, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	return &Rule{ID: id, Text: text, Target: target, AST: node, Dims: dims, NumDims: numDims}, nil
}

// Contains reports whether path lies within the rule's target area.
func (r *Rule) Contains(path ids.Path) bool { return r.Target.Contains(path) }

// TargetPaths enumerates every cell this rule governs, in ascending key
// order, by taking the Cartesian product of the target area's per-dim
// selectors (expanding All via Dims.AllElements). This mirrors the
// eager-materialize approach used throughout internal/transform,
// internal/aggregate and internal/plan.Rearrange: the rule's target area
// is bounded (a cube's dimensions are never unbounded), so enumerating it
// fully is simpler than an incremental walk and still produces the
// required ascending order once sorted.
func (r *Rule) TargetPaths() []ids.Path {
	candidates := make([][]ids.ID, r.NumDims)
	for dim := 0; dim < r.NumDims; dim++ {
		if dim < len(r.Target.Dims) {
			sel := r.Target.Dims[dim]
			if sel.All {
				candidates[dim] = r.Dims.AllElements(dim)
			} else if sel.Set != nil {
				candidates[dim] = sel.Set.Slice()
			}
		}
	}
	var out []ids.Path
	scratch := make(ids.Path, r.NumDims)
	var walk func(dim int)
	walk = func(dim int) {
		if dim == r.NumDims {
			out = append(out, scratch.Clone())
			return
		}
		for _, id := range candidates[dim] {
			scratch[dim] = id
			walk(dim + 1)
		}
	}
	walk(0)
	return out
}

// Stream materializes this rule's entire target area as a sorted
// (path, value) stream, suitable for passing to plan.NewRule as one of
// its rule overlays.
func (r *Rule) Stream(under Underlying) stream.Stream {
	paths := r.TargetPaths()
	records := make([]stream.Record, len(paths))
	for i, p := range paths {
		records[i] = stream.Record{Key: p, Value: r.Eval(p, under)}
	}
	return stream.NewSortedSliceStream(records)
}

// Eval computes this rule's value at path, starting a fresh recursion
// guard for the call.
func (r *Rule) Eval(path ids.Path, under Underlying) stream.CellValue {
	guard := make(map[string]bool, 4)
	v, err := r.evalGuarded(path, under, guard)
	if err != nil {
		kind, ok := molaperr.KindOf(err)
		if !ok {
			kind = molaperr.KindEvaluation
		}
		return stream.ErrorVal(kind)
	}
	v.RuleID = r.ID
	return v
}

// EvalGuarded evaluates this rule at path using a caller-supplied guard,
// for an Underlying implementation that needs to delegate a Source
// lookup to whichever rule governs the target cell while preserving the
// in-progress set built up by the outer evaluation.
func (r *Rule) EvalGuarded(path ids.Path, under Underlying, guard map[string]bool) (stream.CellValue, error) {
	v, err := r.evalGuarded(path, under, guard)
	if err != nil {
		return stream.CellValue{}, err
	}
	v.RuleID = r.ID
	return v, nil
}

// evalGuarded marks path as in-progress before evaluating, so a Source
// reference that loops back to a cell already on the call stack is
// caught as RuleCircular instead of recursing forever.
func (r *Rule) evalGuarded(path ids.Path, under Underlying, guard map[string]bool) (stream.CellValue, error) {
	key := pathKey(path)
	if guard[key] {
		return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.Eval", molaperr.ErrRuleCircular)
	}
	guard[key] = true
	defer delete(guard, key)
	return r.evalNode(r.AST, path, under, guard)
}

func (r *Rule) evalNode(node ast.Node, coord ids.Path, under Underlying, guard map[string]bool) (stream.CellValue, error) {
	switch n := node.(type) {
	case *ast.Constant:
		if n.IsString {
			return stream.StringVal(n.Str), nil
		}
		return stream.NumberValue(n.Num), nil

	case *ast.Source:
		target, err := r.resolveSourcePath(coord, n)
		if err != nil {
			return stream.CellValue{}, err
		}
		if guard[pathKey(target)] {
			return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.Eval", molaperr.ErrRuleCircular)
		}
		return under.Get(target, guard)

	case *ast.Arithmetic:
		left, err := r.evalNode(n.Left, coord, under, guard)
		if err != nil {
			return stream.CellValue{}, err
		}
		right, err := r.evalNode(n.Right, coord, under, guard)
		if err != nil {
			return stream.CellValue{}, err
		}
		if left.IsError() || right.IsError() {
			return stream.CellValue{Kind: stream.ErrorValue, ErrKind: molaperr.KindEvaluation}, nil
		}
		a, b := left.AsDouble(), right.AsDouble()
		switch n.Op {
		case "+":
			return stream.NumberValue(a + b), nil
		case "-":
			return stream.NumberValue(a - b), nil
		case "*":
			return stream.NumberValue(a * b), nil
		case "/":
			if b == 0 {
				return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.Eval", molaperr.ErrDivisionByZero)
			}
			return stream.NumberValue(a / b), nil
		default:
			return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.Eval", molaperr.ErrUnsupported)
		}

	case *ast.Comparison:
		left, err := r.evalNode(n.Left, coord, under, guard)
		if err != nil {
			return stream.CellValue{}, err
		}
		right, err := r.evalNode(n.Right, coord, under, guard)
		if err != nil {
			return stream.CellValue{}, err
		}
		if left.IsError() || right.IsError() {
			return stream.CellValue{Kind: stream.ErrorValue, ErrKind: molaperr.KindEvaluation}, nil
		}
		result := compare(left, right, n.Op)
		return stream.NumberValue(result), nil

	case *ast.If:
		cond, err := r.evalNode(n.Cond, coord, under, guard)
		if err != nil {
			return stream.CellValue{}, err
		}
		if cond.IsError() {
			return stream.CellValue{Kind: stream.ErrorValue, ErrKind: molaperr.KindEvaluation}, nil
		}
		if cond.AsDouble() != 0 {
			return r.evalNode(n.Then, coord, under, guard)
		}
		return r.evalNode(n.Else, coord, under, guard)

	case *ast.Function:
		return r.evalFunction(n, coord, under, guard)

	default:
		return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.Eval", molaperr.ErrUnsupported)
	}
}

func compare(left, right stream.CellValue, op string) float64 {
	var lt, eq bool
	if left.Kind == stream.String || right.Kind == stream.String {
		l, r := left.Str, right.Str
		lt = l < r
		eq = l == r
	} else {
		a, b := left.AsDouble(), right.AsDouble()
		lt = a < b
		eq = a == b
	}
	var result bool
	switch op {
	case "=":
		result = eq
	case "<>":
		result = !eq
	case "<":
		result = lt
	case "<=":
		result = lt || eq
	case ">":
		result = !lt && !eq
	case ">=":
		result = !lt
	}
	if result {
		return 1
	}
	return 0
}

func (r *Rule) evalFunction(fn *ast.Function, coord ids.Path, under Underlying, guard map[string]bool) (stream.CellValue, error) {
	name := upper(fn.Name)

	if name == "ISEMPTY" {
		if len(fn.Args) != 1 {
			return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.ISEMPTY", molaperr.ErrFunctionArity)
		}
		v, err := r.evalNode(fn.Args[0], coord, under, guard)
		if err != nil {
			return stream.CellValue{}, err
		}
		if v.IsEmpty() {
			return stream.NumberValue(1), nil
		}
		return stream.NumberValue(0), nil
	}

	args := make([]stream.CellValue, len(fn.Args))
	for i, a := range fn.Args {
		v, err := r.evalNode(a, coord, under, guard)
		if err != nil {
			return stream.CellValue{}, err
		}
		args[i] = v
	}
	for _, a := range args {
		if a.IsError() {
			return stream.CellValue{Kind: stream.ErrorValue, ErrKind: molaperr.KindEvaluation}, nil
		}
	}

	switch name {
	case "ABS":
		if len(args) != 1 {
			return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.ABS", molaperr.ErrFunctionArity)
		}
		return stream.NumberValue(math.Abs(args[0].AsDouble())), nil

	case "ROUND":
		if len(args) != 1 {
			return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.ROUND", molaperr.ErrFunctionArity)
		}
		return stream.NumberValue(math.Round(args[0].AsDouble())), nil

	case "NOT":
		if len(args) != 1 {
			return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.NOT", molaperr.ErrFunctionArity)
		}
		if args[0].AsDouble() == 0 {
			return stream.NumberValue(1), nil
		}
		return stream.NumberValue(0), nil

	case "AND":
		if len(args) == 0 {
			return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.AND", molaperr.ErrFunctionArity)
		}
		for _, a := range args {
			if a.AsDouble() == 0 {
				return stream.NumberValue(0), nil
			}
		}
		return stream.NumberValue(1), nil

	case "OR":
		if len(args) == 0 {
			return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.OR", molaperr.ErrFunctionArity)
		}
		for _, a := range args {
			if a.AsDouble() != 0 {
				return stream.NumberValue(1), nil
			}
		}
		return stream.NumberValue(0), nil

	case "MIN":
		if len(args) == 0 {
			return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.MIN", molaperr.ErrFunctionArity)
		}
		m := args[0].AsDouble()
		for _, a := range args[1:] {
			if v := a.AsDouble(); v < m {
				m = v
			}
		}
		return stream.NumberValue(m), nil

	case "MAX":
		if len(args) == 0 {
			return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule.MAX", molaperr.ErrFunctionArity)
		}
		m := args[0].AsDouble()
		for _, a := range args[1:] {
			if v := a.AsDouble(); v > m {
				m = v
			}
		}
		return stream.NumberValue(m), nil

	default:
		return stream.CellValue{}, molaperr.Wrap(molaperr.KindEvaluation, "Rule."+fn.Name, molaperr.ErrUnsupported)
	}
}

// resolveSourcePath overlays the named coordinates from src onto coord,
// leaving every dimension src leaves blank at its current value.
func (r *Rule) resolveSourcePath(coord ids.Path, src *ast.Source) (ids.Path, error) {
	target := coord.Clone()
	for dim, name := range src.Coords {
		if dim >= len(target) || name == "" {
			continue
		}
		id, ok := r.Dims.ElementID(dim, name)
		if !ok {
			return nil, molaperr.Wrap(molaperr.KindInput, "Rule.Source", molaperr.ErrUnknownID)
		}
		target[dim] = id
	}
	return target, nil
}

func pathKey(p ids.Path) string {
	buf := make([]byte, len(p)*4)
	for i, id := range p {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(id))
	}
	return string(buf)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
