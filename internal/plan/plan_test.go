package plan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/plan"
	"github.com/dreamware/molap/internal/stream"
)

type fakeStorage struct {
	records []stream.Record
}

func (f *fakeStorage) GetCellValues(area ids.Area) stream.Stream {
	var out []stream.Record
	for _, r := range f.records {
		if area.Contains(r.Key) {
			out = append(out, r)
		}
	}
	return stream.NewSliceStream(out)
}

func allArea(n int) ids.Area {
	dims := make([]ids.DimSelector, n)
	for i := range dims {
		dims[i] = ids.DimSelector{All: true}
	}
	return ids.NewArea(dims...)
}

func TestSourceYieldsStoredCells(t *testing.T) {
	storage := &fakeStorage{records: []stream.Record{
		{Key: ids.Path{1}, Value: stream.NumberValue(1)},
		{Key: ids.Path{2}, Value: stream.NumberValue(2)},
	}}
	src := plan.NewSource(storage, allArea(1))

	require.True(t, src.Next())
	require.True(t, src.GetKey().Equal(ids.Path{1}))
	require.True(t, src.Next())
	require.True(t, src.GetKey().Equal(ids.Path{2}))
	require.False(t, src.Next())
}

func TestCombinationLaterStreamOverrides(t *testing.T) {
	base := stream.NewSliceStream([]stream.Record{
		{Key: ids.Path{1}, Value: stream.NumberValue(1)},
		{Key: ids.Path{2}, Value: stream.NumberValue(2)},
	})
	overlay := stream.NewSliceStream([]stream.Record{
		{Key: ids.Path{2}, Value: stream.NumberValue(200)},
	})
	comb := plan.NewCombination(base, overlay)

	require.True(t, comb.Next())
	require.Equal(t, 1.0, comb.GetDouble())
	require.True(t, comb.Next())
	require.Equal(t, 200.0, comb.GetDouble())
	require.False(t, comb.Next())
}

func TestRearrangeMatchesScenarioS4(t *testing.T) {
	// S4: cube over (D1, D2) with (a,x)=1, (b,x)=2, (a,y)=3. Target order
	// (D2, D1) must emit (x,a)=1, (x,b)=2, (y,a)=3 in that exact order.
	const a, b, x, y ids.ID = 1, 2, 10, 20
	child := stream.NewSliceStream([]stream.Record{
		{Key: ids.Path{a, x}, Value: stream.NumberValue(1)},
		{Key: ids.Path{a, y}, Value: stream.NumberValue(3)},
		{Key: ids.Path{b, x}, Value: stream.NumberValue(2)},
	})
	// target dim 0 = D2 (source ordinal 1), target dim 1 = D1 (source ordinal 0).
	r := plan.NewRearrange(child, plan.Permutation{1, 0})

	require.True(t, r.Next())
	require.True(t, r.GetKey().Equal(ids.Path{x, a}))
	require.Equal(t, 1.0, r.GetDouble())

	require.True(t, r.Next())
	require.True(t, r.GetKey().Equal(ids.Path{x, b}))
	require.Equal(t, 2.0, r.GetDouble())

	require.True(t, r.Next())
	require.True(t, r.GetKey().Equal(ids.Path{y, a}))
	require.Equal(t, 3.0, r.GetDouble())

	require.False(t, r.Next())
}

func TestRuleOverlayReplacesUnderlyingValue(t *testing.T) {
	// S5: K[T] := K[a]*10 should win over whatever the base stream has at T.
	const a, T ids.ID = 1, 2
	base := stream.NewSliceStream([]stream.Record{
		{Key: ids.Path{a}, Value: stream.NumberValue(1)},
		{Key: ids.Path{T}, Value: stream.NumberValue(6)}, // consolidated base value
	})
	ruleStream := stream.NewSliceStream([]stream.Record{
		{Key: ids.Path{T}, Value: stream.NumberValue(10)},
	})

	out := plan.NewRule(base, ruleStream)
	require.True(t, out.Next())
	require.Equal(t, 1.0, out.GetDouble())
	require.True(t, out.Next())
	require.Equal(t, 10.0, out.GetDouble())
}
