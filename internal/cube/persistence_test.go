package cube_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/molap/internal/aggregate"
	"github.com/dreamware/molap/internal/config"
	"github.com/dreamware/molap/internal/cube"
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/journal"
	"github.com/dreamware/molap/internal/stream"
)

// TestSnapshotRoundTripsDimensionsCubesAndValues covers §8 S7: loading a
// snapshot reproduces the dimension structure, cube base values, and
// rule set that produced it.
func TestSnapshotRoundTripsDimensionsCubesAndValues(t *testing.T) {
	f := newProductFixture(t)
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p1}, stream.NumberValue(10), aggregate.SplashEqual, ""))
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p2}, stream.NumberValue(20), aggregate.SplashEqual, ""))
	_, err := f.cube.AddRule("['p1'] + ['p2']", ids.NewArea(ids.SetDim(ids.SetOf(f.goal))))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, f.db.SaveSnapshot(dir))

	cfg := config.Defaults()
	cfg.DataDir = dir
	reloaded, err := cube.LoadDatabase(cfg, dir)
	require.NoError(t, err)
	t.Cleanup(reloaded.Shutdown)

	dim, ok := reloaded.Dimension("product")
	require.True(t, ok)
	require.Equal(t, 5, dim.Size())

	c, ok := reloaded.Cube("sales")
	require.True(t, ok)

	p1, err := dim.ElementByName("p1")
	require.NoError(t, err)
	v, err := c.GetCellValue(ids.Path{p1.ID})
	require.NoError(t, err)
	require.Equal(t, 10.0, v.Num)

	allp, err := dim.ElementByName("allp")
	require.NoError(t, err)
	sum, err := c.GetCellValue(ids.Path{allp.ID})
	require.NoError(t, err)
	require.Equal(t, 30.0, sum.Num)

	goal, err := dim.ElementByName("goal")
	require.NoError(t, err)
	gv, err := c.GetCellValue(ids.Path{goal.ID})
	require.NoError(t, err)
	require.Equal(t, 30.0, gv.Num)

	rules := c.ListRules()
	require.Len(t, rules, 1)
}

// TestJournalReplayReproducesWritesSinceSnapshot covers §8 S7's journal
// half: commands appended after a snapshot, including a rolled-back
// lock, replay to the same state that produced them.
func TestJournalReplayReproducesWritesSinceSnapshot(t *testing.T) {
	f := newProductFixture(t)
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p1}, stream.NumberValue(10), aggregate.SplashEqual, ""))

	dir := t.TempDir()
	require.NoError(t, f.db.SaveSnapshot(dir))

	dbJournal := journal.NewCommandWriter(dir+"/db.journal", config.Defaults().JournalRotateBytes)
	f.db.WireJournal(dbJournal)
	cubeJournal := journal.NewCommandWriter(dir+"/cube_sales.journal", config.Defaults().JournalRotateBytes)
	f.cube.WireJournal(cubeJournal)

	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p2}, stream.NumberValue(5), aggregate.SplashEqual, ""))

	lockID, err := f.cube.AcquireLock("tester", ids.NewArea(ids.SetDim(ids.SetOf(f.p2))))
	require.NoError(t, err)
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p2}, stream.NumberValue(999), aggregate.SplashEqual, lockID))
	require.NoError(t, f.cube.RollbackLock(lockID))

	require.NoError(t, dbJournal.Close())
	require.NoError(t, cubeJournal.Close())

	cfg := config.Defaults()
	cfg.DataDir = dir
	reloaded, err := cube.LoadDatabase(cfg, dir)
	require.NoError(t, err)
	t.Cleanup(reloaded.Shutdown)

	c, ok := reloaded.Cube("sales")
	require.True(t, ok)

	v1, err := c.GetCellValue(ids.Path{f.p1})
	require.NoError(t, err)
	require.Equal(t, 10.0, v1.Num)

	v2, err := c.GetCellValue(ids.Path{f.p2})
	require.NoError(t, err)
	require.Equal(t, 5.0, v2.Num)
}
