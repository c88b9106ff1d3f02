package transform_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/stream"
	"github.com/dreamware/molap/internal/transform"
)

func rec(a, b ids.ID, v float64) stream.Record {
	return stream.Record{Key: ids.Path{a, b}, Value: stream.NumberValue(v)}
}

func TestIdentityMappingPassesThrough(t *testing.T) {
	child := stream.NewSliceStream([]stream.Record{rec(1, 1, 10), rec(1, 2, 20)})
	p := transform.New(child, transform.Spec{
		TargetDims: 2,
		Mappings: []transform.DimMapping{
			{SourceOrdinal: 0, TargetOrdinal: 0},
			{SourceOrdinal: 1, TargetOrdinal: 1},
		},
	})

	require.True(t, p.Next())
	require.True(t, p.GetKey().Equal(ids.Path{1, 1}))
	require.Equal(t, 10.0, p.GetDouble())
	require.True(t, p.Next())
	require.True(t, p.GetKey().Equal(ids.Path{1, 2}))
	require.False(t, p.Next())
}

func TestFactorScalesValues(t *testing.T) {
	child := stream.NewSliceStream([]stream.Record{rec(1, 1, 10)})
	p := transform.New(child, transform.Spec{
		TargetDims: 2,
		Mappings: []transform.DimMapping{
			{SourceOrdinal: 0, TargetOrdinal: 0},
			{SourceOrdinal: 1, TargetOrdinal: 1},
		},
		Factor: 2,
	})

	require.True(t, p.Next())
	require.Equal(t, 20.0, p.GetDouble())
}

func TestExpansionFansOutEachInputRecord(t *testing.T) {
	child := stream.NewSliceStream([]stream.Record{
		{Key: ids.Path{1}, Value: stream.NumberValue(5)},
	})
	set := ids.SetOf(10, 20)
	p := transform.New(child, transform.Spec{
		TargetDims: 2,
		Mappings:   []transform.DimMapping{{SourceOrdinal: 0, TargetOrdinal: 0}},
		Expansions: []transform.Expansion{{TargetOrdinal: 1, Elements: set}},
	})

	var keys []ids.Path
	for p.Next() {
		keys = append(keys, p.GetKey().Clone())
	}
	require.Len(t, keys, 2)
	require.True(t, keys[0].Equal(ids.Path{1, 10}))
	require.True(t, keys[1].Equal(ids.Path{1, 20}))
}

func TestSingletonDimensionIsFixed(t *testing.T) {
	child := stream.NewSliceStream([]stream.Record{{Key: ids.Path{1}, Value: stream.NumberValue(1)}})
	p := transform.New(child, transform.Spec{
		TargetDims: 2,
		Mappings:   []transform.DimMapping{{SourceOrdinal: 0, TargetOrdinal: 0}},
		Singletons: map[int]ids.ID{1: 99},
	})

	require.True(t, p.Next())
	require.True(t, p.GetKey().Equal(ids.Path{1, 99}))
}

func TestMultiMapFansOutMappedDimension(t *testing.T) {
	child := stream.NewSliceStream([]stream.Record{{Key: ids.Path{1}, Value: stream.NumberValue(1)}})
	p := transform.New(child, transform.Spec{
		TargetDims: 1,
		Mappings:   []transform.DimMapping{{SourceOrdinal: 0, TargetOrdinal: 0}},
		MultiMaps: map[int]transform.MultiMap{
			0: {1: ids.SetOf(100, 200)},
		},
	})

	var keys []ids.Path
	for p.Next() {
		keys = append(keys, p.GetKey().Clone())
	}
	require.Len(t, keys, 2)
	require.True(t, keys[0].Equal(ids.Path{100}))
	require.True(t, keys[1].Equal(ids.Path{200}))
}
