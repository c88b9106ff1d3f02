package rollback_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/rollback"
	"github.com/dreamware/molap/internal/stream"
)

func tempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "molap-rollback-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestAppendAndReplayReverseOrder(t *testing.T) {
	m := rollback.NewManager(tempDir(t), 1<<20, 1<<20, time.Hour, time.Hour)
	area := ids.NewArea(ids.SetDim(ids.SetOf(1)))
	l := m.Acquire("session-1", area)

	require.NoError(t, l.Append(rollback.UndoRecord{Key: ids.Path{1}, Old: stream.NumberValue(1), RuleID: stream.NoRule}))
	require.NoError(t, l.Append(rollback.UndoRecord{Key: ids.Path{2}, Old: stream.NumberValue(2), RuleID: stream.NoRule}))

	records, err := l.Replay()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.True(t, records[0].Key.Equal(ids.Path{2}), "most recent write replays first")
	require.True(t, records[1].Key.Equal(ids.Path{1}))
}

func TestRollbackAppliesRecordsAndClosesLock(t *testing.T) {
	m := rollback.NewManager(tempDir(t), 1<<20, 1<<20, time.Hour, time.Hour)
	area := ids.NewArea(ids.SetDim(ids.SetOf(1)))
	l := m.Acquire("session-1", area)
	require.NoError(t, l.Append(rollback.UndoRecord{Key: ids.Path{1}, Old: stream.NumberValue(9)}))

	var restored []ids.Path
	err := m.Rollback(l.ID, func(rec rollback.UndoRecord) error {
		restored = append(restored, rec.Key)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, restored, 1)
	require.Equal(t, 0, m.Len())

	_, ok := m.Lookup(l.ID)
	require.False(t, ok)
}

func TestCommitDiscardsJournalWithoutReplay(t *testing.T) {
	m := rollback.NewManager(tempDir(t), 1<<20, 1<<20, time.Hour, time.Hour)
	area := ids.NewArea(ids.SetDim(ids.SetOf(1)))
	l := m.Acquire("session-1", area)
	require.NoError(t, l.Append(rollback.UndoRecord{Key: ids.Path{1}, Old: stream.NumberValue(1)}))

	require.NoError(t, m.Commit(l.ID))
	_, ok := m.Lookup(l.ID)
	require.False(t, ok)
}

func TestAppendSpillsToFileOverMemoryBudget(t *testing.T) {
	m := rollback.NewManager(tempDir(t), 1, 1<<20, time.Hour, time.Hour)
	area := ids.NewArea(ids.SetDim(ids.SetOf(1)))
	l := m.Acquire("session-1", area)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(rollback.UndoRecord{Key: ids.Path{ids.ID(i)}, Old: stream.NumberValue(float64(i))}))
	}

	records, err := l.Replay()
	require.NoError(t, err)
	require.Len(t, records, 5)
	require.True(t, records[0].Key.Equal(ids.Path{4}), "spilled records still replay most-recent-first")

	require.NoError(t, l.Close())
}

func TestAppendRejectsOnceFileBudgetExceeded(t *testing.T) {
	m := rollback.NewManager(tempDir(t), 1, 1, time.Hour, time.Hour)
	area := ids.NewArea(ids.SetDim(ids.SetOf(1)))
	l := m.Acquire("session-1", area)

	err := l.Append(rollback.UndoRecord{Key: ids.Path{1}, Old: stream.NumberValue(1)})
	require.Error(t, err)
}

func TestSweepReclaimsAbandonedLocks(t *testing.T) {
	m := rollback.NewManager(tempDir(t), 1<<20, 1<<20, 20*time.Millisecond, 10*time.Millisecond)
	area := ids.NewArea(ids.SetDim(ids.SetOf(1)))

	var abandonedID string
	m.SetOnAbandoned(func(l *rollback.Lock) { abandonedID = l.ID })

	l := m.Acquire("session-1", area)
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return abandonedID == l.ID
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, m.Len())
}
