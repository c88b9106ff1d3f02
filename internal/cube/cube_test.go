package cube_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/molap/internal/aggregate"
	"github.com/dreamware/molap/internal/config"
	"github.com/dreamware/molap/internal/cube"
	"github.com/dreamware/molap/internal/dimension"
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/stream"
)

// productFixture builds a single-dimension cube: two base elements p1,
// p2; allp consolidates both at weight 1 (S1); wp consolidates them at
// weights 2 and 1 (S3); target is a bare base element with no stored
// value of its own, left for a rule to govern (S5).
type productFixture struct {
	db                     *cube.Database
	cube                   *cube.Cube
	p1, p2, allp, wp, goal ids.ID
}

func newProductFixture(t *testing.T) *productFixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	db := cube.NewDatabase(cfg)
	t.Cleanup(db.Shutdown)

	dim, err := db.AddDimension("product")
	require.NoError(t, err)

	p1, err := dim.AddElement("p1", dimension.Numeric)
	require.NoError(t, err)
	p2, err := dim.AddElement("p2", dimension.Numeric)
	require.NoError(t, err)
	allp, err := dim.AddElement("allp", dimension.Consolidated)
	require.NoError(t, err)
	require.NoError(t, dim.AddChildren(allp, []dimension.ChildWeight{
		{Child: p1, Weight: 1},
		{Child: p2, Weight: 1},
	}))
	wp, err := dim.AddElement("wp", dimension.Consolidated)
	require.NoError(t, err)
	require.NoError(t, dim.AddChildren(wp, []dimension.ChildWeight{
		{Child: p1, Weight: 2},
		{Child: p2, Weight: 1},
	}))
	goal, err := dim.AddElement("goal", dimension.Numeric)
	require.NoError(t, err)

	c, err := db.AddCube("sales", []*dimension.Dimension{dim})
	require.NoError(t, err)

	return &productFixture{db: db, cube: c, p1: p1, p2: p2, allp: allp, wp: wp, goal: goal}
}

// TestHierarchicalSumConsolidatesBaseChildren covers S1: a consolidated
// read equals the sum of its base children's values.
func TestHierarchicalSumConsolidatesBaseChildren(t *testing.T) {
	f := newProductFixture(t)

	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p1}, stream.NumberValue(10), aggregate.SplashEqual, ""))
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p2}, stream.NumberValue(20), aggregate.SplashEqual, ""))

	v, err := f.cube.GetCellValue(ids.Path{f.allp})
	require.NoError(t, err)
	require.Equal(t, stream.Numeric, v.Kind)
	require.Equal(t, 30.0, v.Num)
}

// TestWeightedConsolidationAppliesChildWeights covers S3: a
// consolidated read with non-uniform child weights sums value*weight
// per child rather than a plain average or sum.
func TestWeightedConsolidationAppliesChildWeights(t *testing.T) {
	f := newProductFixture(t)

	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p1}, stream.NumberValue(10), aggregate.SplashEqual, ""))
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p2}, stream.NumberValue(20), aggregate.SplashEqual, ""))

	v, err := f.cube.GetCellValue(ids.Path{f.wp})
	require.NoError(t, err)
	require.Equal(t, stream.Numeric, v.Kind)
	require.Equal(t, 2*10.0+1*20.0, v.Num)
}

// TestEqualSplashDistributesAcrossBaseChildren covers S2: writing a
// consolidated cell under SplashEqual divides the value equally across
// its weight-1 base children, and a subsequent consolidated read
// reflects the splashed values.
func TestEqualSplashDistributesAcrossBaseChildren(t *testing.T) {
	f := newProductFixture(t)

	require.NoError(t, f.cube.SetCellValue(ids.Path{f.allp}, stream.NumberValue(100), aggregate.SplashEqual, ""))

	v1, err := f.cube.GetCellValue(ids.Path{f.p1})
	require.NoError(t, err)
	require.Equal(t, 50.0, v1.Num)

	v2, err := f.cube.GetCellValue(ids.Path{f.p2})
	require.NoError(t, err)
	require.Equal(t, 50.0, v2.Num)

	sum, err := f.cube.GetCellValue(ids.Path{f.allp})
	require.NoError(t, err)
	require.Equal(t, 100.0, sum.Num)
}

// TestRuleOverlayWinsOverConsolidation covers S5: a rule governing a
// base cell with no storage entry of its own produces a value derived
// from another cell, and that value is what a direct read returns —
// there is no "consolidation fallback" to compete with it because goal
// is itself a base element.
func TestRuleOverlayWinsOverConsolidation(t *testing.T) {
	f := newProductFixture(t)
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p1}, stream.NumberValue(5), aggregate.SplashEqual, ""))

	target := ids.NewArea(ids.SetDim(ids.SetOf(f.goal)))
	_, err := f.cube.AddRule("['p1'] * 10", target)
	require.NoError(t, err)

	v, err := f.cube.GetCellValue(ids.Path{f.goal})
	require.NoError(t, err)
	require.Equal(t, stream.Numeric, v.Kind)
	require.Equal(t, 50.0, v.Num)
}

// TestRuleOverlayAppliesUnderneathConsolidation is the deeper form of
// S5/invariant 4: a rule governing a base leaf that feeds a
// consolidation is picked up by the consolidated read too, not just by
// a direct read of the leaf.
func TestRuleOverlayAppliesUnderneathConsolidation(t *testing.T) {
	f := newProductFixture(t)
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p1}, stream.NumberValue(1), aggregate.SplashEqual, ""))
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p2}, stream.NumberValue(20), aggregate.SplashEqual, ""))

	target := ids.NewArea(ids.SetDim(ids.SetOf(f.p1)))
	_, err := f.cube.AddRule("['p2'] * 2", target)
	require.NoError(t, err)

	v, err := f.cube.GetCellValue(ids.Path{f.allp})
	require.NoError(t, err)
	require.Equal(t, 40.0+20.0, v.Num)
}

// TestLockRollbackRestoresPriorValue covers S6: a write made under a
// lock is visible immediately, and RollbackLock restores the cell to
// its pre-lock value.
func TestLockRollbackRestoresPriorValue(t *testing.T) {
	f := newProductFixture(t)
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p1}, stream.NumberValue(10), aggregate.SplashEqual, ""))

	area := ids.NewArea(ids.SetDim(ids.SetOf(f.p1)))
	lockID, err := f.cube.AcquireLock("tester", area)
	require.NoError(t, err)

	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p1}, stream.NumberValue(999), aggregate.SplashEqual, lockID))
	during, err := f.cube.GetCellValue(ids.Path{f.p1})
	require.NoError(t, err)
	require.Equal(t, 999.0, during.Num)

	require.NoError(t, f.cube.RollbackLock(lockID))

	after, err := f.cube.GetCellValue(ids.Path{f.p1})
	require.NoError(t, err)
	require.Equal(t, 10.0, after.Num)
}

// TestLockCommitKeepsWriteAndClosesLock covers the commit half of S6:
// CommitLock keeps the write and frees the lock, so a later lookup by
// the same id fails.
func TestLockCommitKeepsWriteAndClosesLock(t *testing.T) {
	f := newProductFixture(t)

	area := ids.NewArea(ids.SetDim(ids.SetOf(f.p1)))
	lockID, err := f.cube.AcquireLock("tester", area)
	require.NoError(t, err)

	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p1}, stream.NumberValue(42), aggregate.SplashEqual, lockID))
	require.NoError(t, f.cube.CommitLock(lockID))

	v, err := f.cube.GetCellValue(ids.Path{f.p1})
	require.NoError(t, err)
	require.Equal(t, 42.0, v.Num)

	require.Error(t, f.cube.RollbackLock(lockID))
}

// TestAbandonedLockSweepRollsBackPartialWrite covers §4.11's implicit
// rollback: a lock whose owner never commits or rolls it back is
// reclaimed by the sweep, which must restore the cell the same way an
// explicit RollbackLock would rather than leaving the partial write in
// place.
func TestAbandonedLockSweepRollsBackPartialWrite(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.LockSweepInterval = 10 * time.Millisecond
	db := cube.NewDatabase(cfg)
	t.Cleanup(db.Shutdown)

	dim, err := db.AddDimension("product")
	require.NoError(t, err)
	p1, err := dim.AddElement("p1", dimension.Numeric)
	require.NoError(t, err)
	c, err := db.AddCube("sales", []*dimension.Dimension{dim})
	require.NoError(t, err)

	require.NoError(t, c.SetCellValue(ids.Path{p1}, stream.NumberValue(10), aggregate.SplashEqual, ""))

	area := ids.NewArea(ids.SetDim(ids.SetOf(p1)))
	lockID, err := c.AcquireLock("tester", area)
	require.NoError(t, err)
	require.NoError(t, c.SetCellValue(ids.Path{p1}, stream.NumberValue(999), aggregate.SplashEqual, lockID))

	require.Eventually(t, func() bool {
		v, err := c.GetCellValue(ids.Path{p1})
		return err == nil && v.Num == 10.0
	}, time.Second, 5*time.Millisecond, "abandoned lock was never rolled back")

	require.Error(t, c.RollbackLock(lockID))
}

// TestGetCellAreaStreamsEveryRequestedCoordinate exercises GetCellArea
// over the full dimension, confirming it returns both base and
// consolidated coordinates with their correctly aggregated values.
func TestGetCellAreaStreamsEveryRequestedCoordinate(t *testing.T) {
	f := newProductFixture(t)
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p1}, stream.NumberValue(10), aggregate.SplashEqual, ""))
	require.NoError(t, f.cube.SetCellValue(ids.Path{f.p2}, stream.NumberValue(20), aggregate.SplashEqual, ""))

	area := ids.NewArea(ids.SetDim(ids.SetOf(f.p1, f.p2, f.allp, f.wp)))
	s, err := f.cube.GetCellArea(area, nil)
	require.NoError(t, err)

	got := map[ids.ID]float64{}
	for s.Next() {
		got[s.GetKey()[0]] = s.GetDouble()
	}
	require.Equal(t, 10.0, got[f.p1])
	require.Equal(t, 20.0, got[f.p2])
	require.Equal(t, 30.0, got[f.allp])
	require.Equal(t, 40.0, got[f.wp])
}
