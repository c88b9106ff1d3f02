package cube

import (
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/logx"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/rollback"
	"github.com/dreamware/molap/internal/storage"
)

// AcquireLock opens a write transaction over area, owned by owner (an
// opaque caller/session identifier — spec.md scopes the worker-process
// auth layer out, so this is whatever the embedding caller wants to
// record). SetCellValue calls made with the returned lock's ID have
// their prior values captured so RollbackLock can undo them; CommitLock
// discards the undo log and makes the writes permanent.
func (c *Cube) AcquireLock(owner string, area ids.Area) (string, error) {
	if area.NumDims() != len(c.Dims) {
		return "", errInvalidAreaDims
	}
	lock := c.locks.Acquire(owner, area)
	c.appendJournal("LOCK_ACQUIRE", serializeLock(lock.ID, owner))
	return lock.ID, nil
}

// CommitLock finalizes every write made under lockID, discarding its
// undo log. The writes themselves are already visible; this only frees
// the lock's bookkeeping.
func (c *Cube) CommitLock(lockID string) error {
	if err := c.locks.Commit(lockID); err != nil {
		return molaperr.Wrap(molaperr.KindState, "Cube.CommitLock", molaperr.ErrLockConflict)
	}
	c.appendJournal("LOCK_COMMIT", serializeLockID(lockID))
	return nil
}

// RollbackLock undoes every write made under lockID, in reverse order,
// restoring each touched cell's prior value straight to storage (not
// through SetCellValue, so the restore itself isn't re-captured for
// undo and doesn't re-splash).
func (c *Cube) RollbackLock(lockID string) error {
	var restored []rollback.UndoRecord
	err := c.locks.Rollback(lockID, func(rec rollback.UndoRecord) error {
		restored = append(restored, rec)
		return c.restoreRaw(rec)
	})
	if err != nil {
		return molaperr.Wrap(molaperr.KindState, "Cube.RollbackLock", molaperr.ErrLockConflict)
	}
	c.cache.Clear()
	// The rollback's effect is journaled as ordinary SET_CELL lines (one
	// per restored cell) rather than only the LOCK_ROLLBACK marker below:
	// a lock's undo log is discarded once rollback completes, so nothing
	// else would let journal replay reconstruct what the rollback changed.
	for _, rec := range restored {
		c.appendJournal("SET_CELL", serializeSetCell(rec.Key, rec.Old))
	}
	c.appendJournal("LOCK_ROLLBACK", serializeLockID(lockID))
	return nil
}

// restoreRaw writes rec.Old back to storage, bypassing the undo log and
// the journal (the caller journals each restored cell as a SET_CELL
// line once every record has been restored). SetCellValue already deletes both stores for an
// Empty value, so no special case is needed here.
func (c *Cube) restoreRaw(rec rollback.UndoRecord) error {
	return c.Storage.SetCellValue(rec.Key, rec.Old, rec.RuleID, storage.OpSet)
}

// rollbackAbandonedLock performs the implicit rollback spec.md §4.11
// requires for a lock whose owning session never committed or rolled it
// back before the sweep reclaimed it. l has already been removed from
// the lock manager's table but is not yet closed, so its undo log is
// still readable; this replays it exactly the way RollbackLock replays
// an explicit one, restoring each touched cell straight to storage and
// journaling the restore as ordinary SET_CELL lines plus one
// LOCK_ROLLBACK marker. Errors are logged rather than returned: there is
// no caller left to hand them to.
func (c *Cube) rollbackAbandonedLock(l *rollback.Lock) {
	log := logx.For("cube")

	records, err := l.Replay()
	if err != nil {
		log.Error().Err(err).Str("lock", l.ID).Msg("failed to replay abandoned lock's undo log")
		return
	}

	var restored []rollback.UndoRecord
	for _, rec := range records {
		if err := c.restoreRaw(rec); err != nil {
			log.Error().Err(err).Str("lock", l.ID).Msg("failed to restore cell during abandoned-lock rollback")
			continue
		}
		restored = append(restored, rec)
	}
	if len(restored) == 0 {
		return
	}

	c.cache.Clear()
	for _, rec := range restored {
		c.appendJournal("SET_CELL", serializeSetCell(rec.Key, rec.Old))
	}
	c.appendJournal("LOCK_ROLLBACK", serializeLockID(l.ID))
}
