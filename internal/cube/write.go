package cube

import (
	"github.com/dreamware/molap/internal/aggregate"
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/logx"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/rollback"
	"github.com/dreamware/molap/internal/storage"
	"github.com/dreamware/molap/internal/stream"
)

var errConsolidatedStringSplash = molaperr.Wrap(molaperr.KindInput, "Cube.SetCellValue", molaperr.ErrTypeMismatch)

// SetCellValue writes value at path. A fully-base path is written
// directly; a path with any consolidated coordinate is splashed across
// its weighted base expansion under mode (spec.md §4.8). lockID, if
// non-empty, must name a lock already held via AcquireLock over an area
// containing path; every base cell actually touched has its prior value
// recorded to that lock's undo log before being overwritten.
func (c *Cube) SetCellValue(path ids.Path, value stream.CellValue, mode aggregate.SplashMode, lockID string) error {
	if err := c.validatePath(path); err != nil {
		return err
	}

	targets := c.baseExpansion(path)
	if len(targets) == 1 && targets[0].Weight == 1 && targets[0].Key.Equal(path) {
		return c.writeBase(path, value, lockID)
	}

	if value.Kind != stream.Numeric {
		return errConsolidatedStringSplash
	}

	decision := aggregate.DecideSplash(len(targets), int(c.cfg.SplashLimit1), int(c.cfg.SplashLimit2), int(c.cfg.SplashLimit3))
	switch decision {
	case aggregate.DecisionReject:
		return molaperr.Wrap(molaperr.KindPolicy, "Cube.SetCellValue", molaperr.ErrSplashRejected)
	case aggregate.DecisionWarn:
		logx.For("cube").Warn().Str("cube", c.Name).Int("cells", len(targets)).Msg("large splash write")
	}

	for i := range targets {
		old, err := c.rawStorageValue(targets[i].Key)
		if err != nil {
			return err
		}
		if old.Kind == stream.String {
			return errConsolidatedStringSplash
		}
		targets[i].Old = old.Num
	}

	newValues, err := aggregate.Splash(mode, targets, value.Num)
	if err != nil {
		return err
	}

	var lock *rollback.Lock
	if lockID != "" {
		l, ok := c.locks.Lookup(lockID)
		if !ok {
			return molaperr.Wrap(molaperr.KindState, "Cube.SetCellValue", molaperr.ErrLockConflict)
		}
		lock = l
	}

	for i, t := range targets {
		if lock != nil {
			if err := lock.Append(rollback.UndoRecord{Key: t.Key.Clone(), Old: stream.NumberValue(t.Old)}); err != nil {
				return err
			}
		}
		c.Storage.Numeric.Set(t.Key, newValues[i], stream.NoRule, storage.OpSet)
	}

	c.cache.Invalidate(int64(len(targets)))
	c.appendJournal("SET_CELL_AREA", serializeSplash(path, value, mode))
	return nil
}

// writeBase writes a single fully-base cell directly, recording its
// prior value to lockID's undo log first if one is held.
func (c *Cube) writeBase(path ids.Path, value stream.CellValue, lockID string) error {
	old, err := c.rawStorageValue(path)
	if err != nil {
		return err
	}

	if lockID != "" {
		lock, ok := c.locks.Lookup(lockID)
		if !ok {
			return molaperr.Wrap(molaperr.KindState, "Cube.SetCellValue", molaperr.ErrLockConflict)
		}
		if err := lock.Append(rollback.UndoRecord{Key: path.Clone(), Old: old, RuleID: old.RuleID}); err != nil {
			return err
		}
	}

	if err := c.Storage.SetCellValue(path, value, stream.NoRule, storage.OpSet); err != nil {
		return err
	}

	c.cache.Invalidate(1)
	c.appendJournal("SET_CELL", serializeSetCell(path, value))
	return nil
}

// baseExpansion returns path's weighted base-cell expansion: a single
// identity target (weight 1) if path is already fully base, otherwise
// the Cartesian product of every consolidated coordinate's BaseElements.
func (c *Cube) baseExpansion(path ids.Path) []aggregate.Target {
	expansions := make([]map[ids.ID]float64, len(path))
	trivial := true
	for i, id := range path {
		be := c.Dims[i].BaseElements(id)
		expansions[i] = be
		if len(be) != 1 || be[id] != 1 {
			trivial = false
		}
	}
	if trivial {
		return []aggregate.Target{{Key: path.Clone(), Weight: 1}}
	}

	var out []aggregate.Target
	combo := make(ids.Path, len(path))
	var walk func(dim int, weight float64)
	walk = func(dim int, weight float64) {
		if dim == len(path) {
			out = append(out, aggregate.Target{Key: combo.Clone(), Weight: weight})
			return
		}
		for leaf, w := range expansions[dim] {
			combo[dim] = leaf
			walk(dim+1, weight*w)
		}
	}
	walk(0, 1)
	return out
}
