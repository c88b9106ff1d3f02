package dimension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/molap/internal/ids"
)

func buildABC(t *testing.T) (*Dimension, map[string]ids.ID) {
	t.Helper()
	d := New("D1")
	a, err := d.AddElement("a", Numeric)
	require.NoError(t, err)
	b, err := d.AddElement("b", Numeric)
	require.NoError(t, err)
	c, err := d.AddElement("c", Numeric)
	require.NoError(t, err)
	top, err := d.AddElement("T", Consolidated)
	require.NoError(t, err)
	require.NoError(t, d.AddChildren(top, []ChildWeight{
		{Child: a, Weight: 1}, {Child: b, Weight: 1}, {Child: c, Weight: 1},
	}))
	return d, map[string]ids.ID{"a": a, "b": b, "c": c, "T": top}
}

func TestAddElementRejectsDuplicateName(t *testing.T) {
	d := New("D1")
	_, err := d.AddElement("a", Numeric)
	require.NoError(t, err)
	_, err = d.AddElement("a", Numeric)
	require.Error(t, err)
}

func TestAddChildrenRejectsCycle(t *testing.T) {
	d := New("D1")
	a, _ := d.AddElement("a", Numeric)
	b, _ := d.AddElement("b", Numeric)
	require.NoError(t, d.AddChildren(a, []ChildWeight{{Child: b, Weight: 1}}))
	err := d.AddChildren(b, []ChildWeight{{Child: a, Weight: 1}})
	require.Error(t, err)
}

func TestChildlessConsolidatedBecomesNumeric(t *testing.T) {
	d, m := buildABC(t)
	require.NoError(t, d.RemoveChildren(m["T"], []ids.ID{m["a"], m["b"], m["c"]}))
	e, err := d.Element(m["T"])
	require.NoError(t, err)
	assert.Equal(t, Numeric, e.Kind)
}

func TestBaseElementsOfWeightedSum(t *testing.T) {
	d := New("D1")
	a, _ := d.AddElement("a", Numeric)
	b, _ := d.AddElement("b", Numeric)
	top, _ := d.AddElement("T", Consolidated)
	require.NoError(t, d.AddChildren(top, []ChildWeight{{Child: a, Weight: 2}, {Child: b, Weight: 1}}))

	base := d.BaseElements(top)
	assert.Equal(t, map[ids.ID]float64{a: 2, b: 1}, base)
}

func TestDeleteElementsBatchPreservesPositions(t *testing.T) {
	d := New("D1")
	var created []ids.ID
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		id, err := d.AddElement(name, Numeric)
		require.NoError(t, err)
		created = append(created, id)
	}
	// delete "b" (pos 1) and "d" (pos 3) together
	require.NoError(t, d.DeleteElements([]ids.ID{created[1], created[3]}))

	ea, _ := d.Element(created[0])
	ec, _ := d.Element(created[2])
	ee, _ := d.Element(created[4])
	assert.Equal(t, 0, ea.Position)
	assert.Equal(t, 1, ec.Position) // shifted down by 1 (one removal before it)
	assert.Equal(t, 2, ee.Position) // shifted down by 2

	_, err := d.Element(created[1])
	assert.Error(t, err)
}

func TestLevelDepthIndent(t *testing.T) {
	d, m := buildABC(t)
	lvl, depth, indent, err := d.Stats(m["a"])
	require.NoError(t, err)
	assert.Equal(t, 0, lvl)
	assert.Equal(t, 1, depth)
	assert.Equal(t, 1, indent)

	lvl, depth, indent, err = d.Stats(m["T"])
	require.NoError(t, err)
	assert.Equal(t, 1, lvl)
	assert.Equal(t, 0, depth)
	assert.Equal(t, 0, indent)
}

func TestBatchDeleteMatchesSequentialDeletes(t *testing.T) {
	build := func() (*Dimension, []ids.ID) {
		d := New("D1")
		var created []ids.ID
		for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
			id, _ := d.AddElement(name, Numeric)
			created = append(created, id)
		}
		return d, created
	}

	batched, created := build()
	require.NoError(t, batched.DeleteElements([]ids.ID{created[1], created[3], created[4]}))

	sequential, created2 := build()
	require.NoError(t, sequential.DeleteElement(created2[1]))
	require.NoError(t, sequential.DeleteElement(created2[3]))
	require.NoError(t, sequential.DeleteElement(created2[4]))

	for _, id := range []ids.ID{created[0], created[2], created[5]} {
		eb, err := batched.Element(id)
		require.NoError(t, err)
		es, err := sequential.Element(id)
		require.NoError(t, err)
		assert.Equal(t, es.Position, eb.Position)
	}
}
