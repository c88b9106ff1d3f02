// Package engine exposes the query-surface operations spec.md §6 pins
// (cell/*, dim/*, rule/*, lock/*) as plain Go methods over an
// internal/cube.Database, with the HTTP/TLS/legacy-binary-wire framing
// those operations would eventually ride over left to a caller — this
// package is the core those adapters would wrap, not the adapter
// itself.
package engine

import (
	"math"
	"sync"
	"time"

	"github.com/dreamware/molap/internal/aggregate"
	"github.com/dreamware/molap/internal/cube"
	"github.com/dreamware/molap/internal/dimension"
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/plan"
	"github.com/dreamware/molap/internal/pool"
	"github.com/dreamware/molap/internal/rule"
	"github.com/dreamware/molap/internal/stream"
)

// Engine is the query-surface entry point: one Database, addressed by
// cube and dimension name rather than by Go reference, matching the
// "cubeId"-keyed request shape spec.md §6 describes. Its own worker pool
// (spec.md §4.2, C2) fans out the one operation that's naturally
// parallel at this layer — a bulk cell write's independent rows — while
// every other operation runs on the caller's own goroutine.
type Engine struct {
	db   *cube.Database
	pool *pool.Pool
}

// New wraps db, starting Engine's own worker pool at the default size
// (spec.md §4.2's max(16, 2*GOMAXPROCS)). Cube storage already
// serializes concurrent writes internally (spec.md §5), so fanning bulk
// rows out across this pool is safe without any extra locking here.
func New(db *cube.Database) *Engine {
	return &Engine{db: db, pool: pool.New(pool.DefaultInitSize(), nil)}
}

func (e *Engine) cube(cubeID string) (*cube.Cube, error) {
	c, ok := e.db.Cube(cubeID)
	if !ok {
		return nil, molaperr.Wrap(molaperr.KindState, "Engine", molaperr.ErrElementNotFound)
	}
	return c, nil
}

// CellValues implements cell/values: resolve a single cell.
func (e *Engine) CellValues(cubeID string, path ids.Path) (stream.CellValue, error) {
	c, err := e.cube(cubeID)
	if err != nil {
		return stream.CellValue{}, err
	}
	return c.GetCellValue(path)
}

// CellArea implements cell/area: stream every cell an area selects,
// optionally reordered by perm.
func (e *Engine) CellArea(cubeID string, area ids.Area, perm plan.Permutation) (stream.Stream, error) {
	c, err := e.cube(cubeID)
	if err != nil {
		return nil, err
	}
	return c.GetCellArea(area, perm)
}

// CellReplace implements cell/replace: write a single cell, splashing
// if it addresses a consolidated coordinate. lockID, if non-empty, must
// be held over an area containing path.
func (e *Engine) CellReplace(cubeID string, path ids.Path, value stream.CellValue, mode aggregate.SplashMode, lockID string) error {
	c, err := e.cube(cubeID)
	if err != nil {
		return err
	}
	return c.SetCellValue(path, value, mode, lockID)
}

// CellWrite is one row of a cell/replace_bulk request.
type CellWrite struct {
	Path  ids.Path
	Value stream.CellValue
}

// CellReplaceBulk implements cell/replace_bulk: write every row
// independently, returning a sparse per-row error map (absent entries
// succeeded). A row failing never blocks the rows after it, matching
// spec.md §6 "ok with per-row error map" — the all-or-nothing guarantee
// in §7 applies to structural operations, not bulk cell writes. Rows
// fan out across the engine's pool under one ThreadGroup and are
// awaited with Join, the same submit/join shape spec.md §4.2 describes.
func (e *Engine) CellReplaceBulk(cubeID string, rows []CellWrite, mode aggregate.SplashMode, lockID string) (map[int]error, error) {
	c, err := e.cube(cubeID)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	errs := make(map[int]error)
	tg := pool.NewThreadGroup()
	for i, row := range rows {
		i, row := i, row
		e.pool.Submit(tg, pool.Normal, func() {
			if err := c.SetCellValue(row.Path, row.Value, mode, lockID); err != nil {
				mu.Lock()
				errs[i] = err
				mu.Unlock()
			}
		})
	}
	tg.Join()
	return errs, nil
}

// CellExport implements cell/export: one page of up to pageSize rows
// from area, in ascending key order, starting strictly after afterKey
// (nil for the first page). lastKey is the last row's key, for the
// caller to pass back as the next page's afterKey; it is nil when the
// page is empty.
func (e *Engine) CellExport(cubeID string, area ids.Area, pageSize int, afterKey ids.Path) ([]stream.Record, ids.Path, error) {
	c, err := e.cube(cubeID)
	if err != nil {
		return nil, nil, err
	}
	s, err := c.GetCellArea(area, nil)
	if err != nil {
		return nil, nil, err
	}

	var page []stream.Record
	for s.Next() {
		key := s.GetKey()
		if afterKey != nil && key.Compare(afterKey) <= 0 {
			continue
		}
		page = append(page, stream.Record{Key: key.Clone(), Value: s.GetValue()})
		if len(page) == pageSize {
			break
		}
	}
	if len(page) == 0 {
		return page, nil, nil
	}
	return page, page[len(page)-1].Key, nil
}

// CellGoalSeek implements cell/goalseek: repeatedly write key so its
// resolved value approaches target, stopping once it is within
// tolerance. Each write is one "cell touched" against cellLimit; the
// search also stops at timeout. A key governed by a rule or otherwise
// not settled by a direct/splash write converges to a fixed point
// within a couple of iterations or is reported CellLimit rather than
// looping indefinitely.
func (e *Engine) CellGoalSeek(cubeID string, key ids.Path, target, tolerance float64, timeout time.Duration, cellLimit int) error {
	c, err := e.cube(cubeID)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	current, err := c.GetCellValue(key)
	if err != nil {
		return err
	}
	if current.IsError() {
		return molaperr.Wrap(molaperr.KindEvaluation, "Engine.CellGoalSeek", molaperr.ErrUnsupportedConv)
	}

	touched := 0
	for {
		diff := target - current.AsDouble()
		if math.Abs(diff) <= tolerance {
			return nil
		}
		if time.Now().After(deadline) {
			return molaperr.Wrap(molaperr.KindLifecycle, "Engine.CellGoalSeek", molaperr.ErrTimeout)
		}
		touched++
		if touched > cellLimit {
			return molaperr.Wrap(molaperr.KindPolicy, "Engine.CellGoalSeek", molaperr.ErrCellLimit)
		}

		if err := c.SetCellValue(key, stream.NumberValue(current.AsDouble()+diff), aggregate.SplashEqual, ""); err != nil {
			return err
		}
		next, err := c.GetCellValue(key)
		if err != nil {
			return err
		}
		if next.AsDouble() == current.AsDouble() {
			return molaperr.Wrap(molaperr.KindPolicy, "Engine.CellGoalSeek", molaperr.ErrCellLimit)
		}
		current = next
	}
}

// DimAddElement implements dim/add_element.
func (e *Engine) DimAddElement(dimName, elemName string, kind dimension.Kind) (ids.ID, error) {
	return e.db.AddElement(dimName, elemName, kind)
}

// DimMoveElement implements dim/move_element.
func (e *Engine) DimMoveElement(dimName string, id ids.ID, newPosition int) error {
	return e.db.MoveElement(dimName, id, newPosition)
}

// DimRenameElement implements dim/rename_element.
func (e *Engine) DimRenameElement(dimName string, id ids.ID, newName string) error {
	return e.db.RenameElement(dimName, id, newName)
}

// DimChangeType implements dim/change_type.
func (e *Engine) DimChangeType(dimName string, id ids.ID, kind dimension.Kind) error {
	return e.db.ChangeType(dimName, id, kind)
}

// DimAddChildren implements dim/add_children.
func (e *Engine) DimAddChildren(dimName string, parent ids.ID, children []dimension.ChildWeight) error {
	return e.db.AddChildren(dimName, parent, children)
}

// DimRemoveChildren implements dim/remove_children.
func (e *Engine) DimRemoveChildren(dimName string, parent ids.ID, children []ids.ID) error {
	return e.db.RemoveChildren(dimName, parent, children)
}

// DimDeleteElements implements dim/delete_element(s).
func (e *Engine) DimDeleteElements(dimName string, targets []ids.ID) error {
	return e.db.DeleteElements(dimName, targets)
}

// DimClear implements dim/clear.
func (e *Engine) DimClear(dimName string) error {
	return e.db.ClearElements(dimName)
}

// RuleCreate implements rule/create.
func (e *Engine) RuleCreate(cubeID, ruleText string, target ids.Area) (*rule.Rule, error) {
	c, err := e.cube(cubeID)
	if err != nil {
		return nil, err
	}
	return c.AddRule(ruleText, target)
}

// RuleModify implements rule/modify.
func (e *Engine) RuleModify(cubeID string, ruleID int64, ruleText string, target ids.Area) (*rule.Rule, error) {
	c, err := e.cube(cubeID)
	if err != nil {
		return nil, err
	}
	return c.ModifyRule(ruleID, ruleText, target)
}

// RuleDelete implements rule/delete.
func (e *Engine) RuleDelete(cubeID string, ruleID int64) error {
	c, err := e.cube(cubeID)
	if err != nil {
		return err
	}
	return c.DeleteRule(ruleID)
}

// RuleList implements rule/list.
func (e *Engine) RuleList(cubeID string) ([]*rule.Rule, error) {
	c, err := e.cube(cubeID)
	if err != nil {
		return nil, err
	}
	return c.ListRules(), nil
}

// LockAcquire implements lock/acquire.
func (e *Engine) LockAcquire(cubeID, owner string, area ids.Area) (string, error) {
	c, err := e.cube(cubeID)
	if err != nil {
		return "", err
	}
	return c.AcquireLock(owner, area)
}

// LockRollback implements lock/rollback.
func (e *Engine) LockRollback(cubeID, lockID string) error {
	c, err := e.cube(cubeID)
	if err != nil {
		return err
	}
	return c.RollbackLock(lockID)
}

// LockCommit implements lock/commit.
func (e *Engine) LockCommit(cubeID, lockID string) error {
	c, err := e.cube(cubeID)
	if err != nil {
		return err
	}
	return c.CommitLock(lockID)
}
