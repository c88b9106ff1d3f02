package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/storage"
	"github.com/dreamware/molap/internal/stream"
)

func path(a, b ids.ID) ids.Path { return ids.Path{a, b} }

func allArea() ids.Area {
	return ids.NewArea(ids.DimSelector{All: true}, ids.DimSelector{All: true})
}

func TestNumericStoreSetGetDelete(t *testing.T) {
	s := storage.NewNumericStore()
	k := path(1, 1)

	_, _, ok := s.Get(k)
	require.False(t, ok)

	s.Set(k, 10, stream.NoRule, storage.OpSet)
	v, rule, ok := s.Get(k)
	require.True(t, ok)
	require.Equal(t, 10.0, v)
	require.Equal(t, stream.NoRule, rule)

	s.Set(k, 5, stream.NoRule, storage.OpAdd)
	v, _, ok = s.Get(k)
	require.True(t, ok)
	require.Equal(t, 15.0, v)

	s.Delete(k)
	_, _, ok = s.Get(k)
	require.False(t, ok)
}

func TestNumericStoreStreamAscending(t *testing.T) {
	s := storage.NewNumericStore()
	s.Set(path(2, 1), 1, stream.NoRule, storage.OpSet)
	s.Set(path(1, 1), 2, stream.NoRule, storage.OpSet)
	s.Set(path(1, 2), 3, stream.NoRule, storage.OpSet)

	st := s.Stream(allArea())
	var keys []ids.Path
	for st.Next() {
		keys = append(keys, st.GetKey())
	}
	require.Len(t, keys, 3)
	require.True(t, keys[0].Equal(path(1, 1)))
	require.True(t, keys[1].Equal(path(1, 2)))
	require.True(t, keys[2].Equal(path(2, 1)))
}

func TestNumericStoreDeleteDimensionElement(t *testing.T) {
	s := storage.NewNumericStore()
	s.Set(path(1, 1), 1, stream.NoRule, storage.OpSet)
	s.Set(path(2, 1), 2, stream.NoRule, storage.OpSet)

	s.DeleteDimensionElement(0, 1)
	require.Equal(t, 1, s.Count())
	_, _, ok := s.Get(path(2, 1))
	require.True(t, ok)
}

func TestStringStoreInternsAndResolves(t *testing.T) {
	table := storage.NewStringTable()
	s := storage.NewStringStore(table)
	k := path(1, 1)

	s.Set(k, "hello")
	v, ok := s.Get(k)
	require.True(t, ok)
	require.Equal(t, "hello", v)

	s.Set(k, "world")
	v, ok = s.Get(k)
	require.True(t, ok)
	require.Equal(t, "world", v)
}

func TestMixedStorageDispatchesByKind(t *testing.T) {
	m := storage.NewMixedStorage()

	require.NoError(t, m.SetCellValue(path(1, 1), stream.NumberValue(42), stream.NoRule, storage.OpSet))
	require.NoError(t, m.SetCellValue(path(1, 2), stream.StringVal("north"), stream.NoRule, storage.OpSet))

	require.Equal(t, 2, m.ValuesCount())

	v, _, ok := m.Numeric.Get(path(1, 1))
	require.True(t, ok)
	require.Equal(t, 42.0, v)

	str, ok := m.Strings.Get(path(1, 2))
	require.True(t, ok)
	require.Equal(t, "north", str)
}

func TestMixedStorageGetCellValuesMergesBothStoresInOrder(t *testing.T) {
	m := storage.NewMixedStorage()
	require.NoError(t, m.SetCellValue(path(2, 1), stream.NumberValue(1), stream.NoRule, storage.OpSet))
	require.NoError(t, m.SetCellValue(path(1, 1), stream.StringVal("x"), stream.NoRule, storage.OpSet))

	st := m.GetCellValues(allArea())
	var keys []ids.Path
	for st.Next() {
		keys = append(keys, st.GetKey().Clone())
	}
	require.Len(t, keys, 2)
	require.True(t, keys[0].Equal(path(1, 1)))
	require.True(t, keys[1].Equal(path(2, 1)))
}

func TestMixedStorageSetCellValueRejectsAddOnString(t *testing.T) {
	m := storage.NewMixedStorage()
	err := m.SetCellValue(path(1, 1), stream.StringVal("x"), stream.NoRule, storage.OpAdd)
	require.Error(t, err)
}

func TestMixedStorageIngestStreamOutOfOrder(t *testing.T) {
	m := storage.NewMixedStorage()
	in := stream.NewSliceStream([]stream.Record{
		{Key: path(2, 1), Value: stream.NumberValue(2)},
		{Key: path(1, 1), Value: stream.NumberValue(1)},
	})

	require.NoError(t, m.IngestStream(in, storage.OpSet))
	require.Equal(t, 2, m.ValuesCount())

	v, _, ok := m.Numeric.Get(path(1, 1))
	require.True(t, ok)
	require.Equal(t, 1.0, v)
}

func TestMixedStorageDeleteDimensionElement(t *testing.T) {
	m := storage.NewMixedStorage()
	require.NoError(t, m.SetCellValue(path(1, 1), stream.NumberValue(1), stream.NoRule, storage.OpSet))
	require.NoError(t, m.SetCellValue(path(2, 1), stream.StringVal("x"), stream.NoRule, storage.OpSet))

	m.DeleteDimensionElement(0, 1)
	require.Equal(t, 1, m.ValuesCount())
}
