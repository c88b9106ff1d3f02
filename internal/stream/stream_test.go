package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/molap/internal/ids"
)

func TestSliceStreamOrderAndMove(t *testing.T) {
	s := NewSliceStream([]Record{
		{Key: ids.Path{1}, Value: NumberValue(1)},
		{Key: ids.Path{3}, Value: NumberValue(3)},
		{Key: ids.Path{5}, Value: NumberValue(5)},
	})

	require.True(t, s.Next())
	assert.Equal(t, ids.Path{1}, s.GetKey())

	found, ok := s.Move(ids.Path{4})
	require.True(t, ok)
	assert.False(t, found)
	assert.Equal(t, ids.Path{5}, s.GetKey())

	found, ok = s.Move(ids.Path{3})
	require.True(t, ok)
	assert.True(t, found)

	s.Reset()
	require.True(t, s.Next())
	assert.Equal(t, ids.Path{1}, s.GetKey())
}

func TestSliceStreamExhausted(t *testing.T) {
	s := NewSliceStream(nil)
	assert.False(t, s.Next())
	assert.Nil(t, s.GetKey())
	assert.Equal(t, EmptyValue, s.GetValue())
}

func TestMergeStreamLaterOverrides(t *testing.T) {
	base := NewSliceStream([]Record{
		{Key: ids.Path{1}, Value: NumberValue(1)},
		{Key: ids.Path{2}, Value: NumberValue(2)},
	})
	overlay := NewSliceStream([]Record{
		{Key: ids.Path{2}, Value: NumberValue(200)},
	})
	m := NewMergeStream(base, overlay)

	var got []Record
	for m.Next() {
		got = append(got, Record{Key: m.GetKey().Clone(), Value: m.GetValue()})
	}
	require.Len(t, got, 2)
	assert.Equal(t, float64(1), got[0].Value.Num)
	assert.Equal(t, float64(200), got[1].Value.Num, "overlay stream must win on duplicate key")
}
