package rule_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/rule"
	"github.com/dreamware/molap/internal/stream"
)

// fakeDims resolves element names within a single dimension.
type fakeDims struct {
	byName map[string]ids.ID
	all    []ids.ID
}

func (d *fakeDims) ElementID(dim int, name string) (ids.ID, bool) {
	id, ok := d.byName[name]
	return id, ok
}

func (d *fakeDims) AllElements(dim int) []ids.ID { return d.all }

// fakeUnderlying answers Source lookups from a fixed map, optionally
// delegating to another Rule to model a rule-to-rule reference.
type fakeUnderlying struct {
	values map[string]stream.CellValue
	nested *rule.Rule
}

func keyOf(p ids.Path) string { return fmt.Sprint([]ids.ID(p)) }

func (u *fakeUnderlying) Get(path ids.Path, guard map[string]bool) (stream.CellValue, error) {
	if u.nested != nil && u.nested.Contains(path) {
		return u.nested.EvalGuarded(path, u, guard)
	}
	if v, ok := u.values[keyOf(path)]; ok {
		return v, nil
	}
	return stream.EmptyValue, nil
}

func TestRuleOverlayWinsOverConsolidation(t *testing.T) {
	// S5: K[T] := K[a] * 10; a=1 -> T=10.
	const a, b, c, T ids.ID = 1, 2, 3, 4
	dims := &fakeDims{byName: map[string]ids.ID{"a": a, "b": b, "c": c, "T": T}}

	target := ids.NewArea(ids.SetDim(ids.SetOf(T)))
	r, err := rule.New(1, "['a'] * 10", target, 1, dims)
	require.NoError(t, err)

	under := &fakeUnderlying{values: map[string]stream.CellValue{
		keyOf(ids.Path{a}): stream.NumberValue(1),
	}}

	v := r.Eval(ids.Path{T}, under)
	require.Equal(t, stream.Numeric, v.Kind)
	require.Equal(t, 10.0, v.Num)
	require.Equal(t, int64(1), v.RuleID)
}

func TestRuleStreamEnumeratesTargetArea(t *testing.T) {
	const a, T1, T2 ids.ID = 1, 2, 3
	dims := &fakeDims{byName: map[string]ids.ID{"a": a}}
	target := ids.NewArea(ids.SetDim(ids.SetOf(T1, T2)))
	r, err := rule.New(1, "['a'] + 1", target, 1, dims)
	require.NoError(t, err)

	under := &fakeUnderlying{values: map[string]stream.CellValue{
		keyOf(ids.Path{a}): stream.NumberValue(5),
	}}

	s := r.Stream(under)
	require.True(t, s.Next())
	require.True(t, s.GetKey().Equal(ids.Path{T1}))
	require.Equal(t, 6.0, s.GetDouble())
	require.True(t, s.Next())
	require.True(t, s.GetKey().Equal(ids.Path{T2}))
	require.Equal(t, 6.0, s.GetDouble())
	require.False(t, s.Next())
}

func TestDivisionByZeroYieldsErrorMarker(t *testing.T) {
	dims := &fakeDims{}
	target := ids.NewArea(ids.SetDim(ids.SetOf(1)))
	r, err := rule.New(1, "5 / 0", target, 1, dims)
	require.NoError(t, err)

	v := r.Eval(ids.Path{1}, &fakeUnderlying{values: map[string]stream.CellValue{}})
	require.True(t, v.IsError())
	require.Equal(t, molaperr.KindEvaluation, v.ErrKind)
}

func TestComparisonReturnsZeroOrOne(t *testing.T) {
	dims := &fakeDims{}
	target := ids.NewArea(ids.SetDim(ids.SetOf(1)))
	r, err := rule.New(1, "IF(3 > 2, 1, 0)", target, 1, dims)
	require.NoError(t, err)

	v := r.Eval(ids.Path{1}, &fakeUnderlying{values: map[string]stream.CellValue{}})
	require.Equal(t, 1.0, v.Num)
}

func TestFunctionArityErrorSurfacesAsErrorValue(t *testing.T) {
	dims := &fakeDims{}
	target := ids.NewArea(ids.SetDim(ids.SetOf(1)))
	r, err := rule.New(1, "ABS(1, 2)", target, 1, dims)
	require.NoError(t, err)

	v := r.Eval(ids.Path{1}, &fakeUnderlying{values: map[string]stream.CellValue{}})
	require.True(t, v.IsError())
}

// TestErrorOperandPropagatesThroughIfAndComparison covers spec.md §7: an
// error-marked cell feeding a Comparison or If must surface as an error
// rather than being coerced to 0 by AsDouble, which would otherwise let
// IF(['x']>0, 1, 2) silently pick a branch for an error cell.
func TestErrorOperandPropagatesThroughIfAndComparison(t *testing.T) {
	const x ids.ID = 1
	dims := &fakeDims{byName: map[string]ids.ID{"x": x}}
	target := ids.NewArea(ids.SetDim(ids.SetOf(2)))

	r, err := rule.New(1, "IF(['x'] > 0, 1, 2)", target, 1, dims)
	require.NoError(t, err)

	under := &fakeUnderlying{values: map[string]stream.CellValue{
		keyOf(ids.Path{x}): stream.ErrorVal(molaperr.KindEvaluation),
	}}

	v := r.Eval(ids.Path{2}, under)
	require.True(t, v.IsError())
}

// TestErrorOperandPropagatesThroughFunctionArgs covers the same §7
// requirement for built-in functions: ABS must not coerce an
// error-marked argument to 0 via AsDouble.
func TestErrorOperandPropagatesThroughFunctionArgs(t *testing.T) {
	const x ids.ID = 1
	dims := &fakeDims{byName: map[string]ids.ID{"x": x}}
	target := ids.NewArea(ids.SetDim(ids.SetOf(2)))

	r, err := rule.New(1, "ABS(['x'])", target, 1, dims)
	require.NoError(t, err)

	under := &fakeUnderlying{values: map[string]stream.CellValue{
		keyOf(ids.Path{x}): stream.ErrorVal(molaperr.KindEvaluation),
	}}

	v := r.Eval(ids.Path{2}, under)
	require.True(t, v.IsError())
}

func TestRuleCircularDetectedOnDirectSelfReference(t *testing.T) {
	const x ids.ID = 1
	dims := &fakeDims{byName: map[string]ids.ID{"x": x}}

	// x's own rule references [x] itself, directly.
	target := ids.NewArea(ids.SetDim(ids.SetOf(x)))
	r, err := rule.New(1, "['x'] + 1", target, 1, dims)
	require.NoError(t, err)

	under := &fakeUnderlying{values: map[string]stream.CellValue{}}
	under.nested = r

	v := r.Eval(ids.Path{x}, under)
	require.True(t, v.IsError())
	require.Equal(t, molaperr.KindEvaluation, v.ErrKind)
}

func TestParseErrorIsReported(t *testing.T) {
	dims := &fakeDims{}
	target := ids.NewArea(ids.SetDim(ids.SetOf(1)))
	_, err := rule.New(1, "1 + + 2", target, 1, dims)
	require.Error(t, err)
}
