package cube

import (
	"strconv"
	"sync"

	"github.com/dreamware/molap/internal/config"
	"github.com/dreamware/molap/internal/dimension"
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/journal"
	"github.com/dreamware/molap/internal/logx"
	"github.com/dreamware/molap/internal/molaperr"
)

// Database holds every dimension and cube the engine currently serves.
// Like the teacher's ShardRegistry it is a map-of-structs behind one
// RWMutex: exported methods take the lock themselves, so callers never
// see a half-updated registry.
type Database struct {
	mu sync.RWMutex

	dimensions map[string]*dimension.Dimension
	cubes      map[string]*Cube

	cfg config.Config
	log *journal.CommandWriter
}

// NewDatabase returns an empty database configured with cfg's cache,
// splash, and rollback tunables; every cube created through it inherits
// cfg.
func NewDatabase(cfg config.Config) *Database {
	return &Database{
		dimensions: make(map[string]*dimension.Dimension),
		cubes:      make(map[string]*Cube),
		cfg:        cfg,
	}
}

// WireJournal attaches a command journal used for dimension-structural
// operations (cell writes are journaled per-cube instead, via
// Cube.WireJournal, since a cell mutation always belongs to exactly one
// cube while a dimension may be shared by several).
func (db *Database) WireJournal(w *journal.CommandWriter) { db.log = w }

func (db *Database) appendJournal(event, command string) {
	if db.log == nil {
		return
	}
	if err := db.log.Append(event, command); err != nil {
		logx.For("database").Error().Err(err).Str("event", event).Msg("journal append failed")
	}
}

// AddDimension creates and registers a new, empty dimension named name.
func (db *Database) AddDimension(name string) (*dimension.Dimension, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.dimensions[name]; exists {
		return nil, molaperr.Wrap(molaperr.KindState, "Database.AddDimension", molaperr.ErrNameInUse)
	}
	d := dimension.New(name)
	db.dimensions[name] = d
	db.appendJournal("ADD_DIMENSION", journalField(name))
	return d, nil
}

// dimOp looks up name and runs fn against it while holding a read lock —
// dimensions guard their own mutations internally (spec.md §5 "dimension
// maps are copy-on-structure-change... read without locking"), so the
// database only needs to serialize against concurrent AddDimension.
func (db *Database) dimOp(name string, fn func(*dimension.Dimension) error) error {
	db.mu.RLock()
	d, ok := db.dimensions[name]
	db.mu.RUnlock()
	if !ok {
		return molaperr.Wrap(molaperr.KindState, "Database", molaperr.ErrElementNotFound)
	}
	return fn(d)
}

// AddElement adds a new element to dimension dimName.
func (db *Database) AddElement(dimName, elemName string, kind dimension.Kind) (ids.ID, error) {
	var id ids.ID
	err := db.dimOp(dimName, func(d *dimension.Dimension) error {
		var err error
		id, err = d.AddElement(elemName, kind)
		return err
	})
	if err == nil {
		db.appendJournal("ADD_ELEMENT", serializeAddElement(dimName, elemName, kind))
	}
	return id, err
}

// RenameElement renames id within dimension dimName.
func (db *Database) RenameElement(dimName string, id ids.ID, newName string) error {
	err := db.dimOp(dimName, func(d *dimension.Dimension) error { return d.ChangeName(id, newName) })
	if err == nil {
		db.appendJournal("RENAME_ELEMENT", serializeElementOp(dimName, id, newName))
	}
	return err
}

// ChangeType changes id's kind within dimension dimName.
func (db *Database) ChangeType(dimName string, id ids.ID, kind dimension.Kind) error {
	err := db.dimOp(dimName, func(d *dimension.Dimension) error { return d.ChangeKind(id, kind) })
	if err == nil {
		db.appendJournal("CHANGE_ELEMENT", serializeElementOp(dimName, id, kind.String()))
	}
	return err
}

// MoveElement repositions id within dimension dimName.
func (db *Database) MoveElement(dimName string, id ids.ID, newPosition int) error {
	err := db.dimOp(dimName, func(d *dimension.Dimension) error { return d.Move(id, newPosition) })
	if err == nil {
		db.appendJournal("MOVE_ELEMENT", serializeElementOp(dimName, id, strconv.Itoa(newPosition)))
	}
	return err
}

// AddChildren attaches weighted children to parent within dimension
// dimName.
func (db *Database) AddChildren(dimName string, parent ids.ID, children []dimension.ChildWeight) error {
	err := db.dimOp(dimName, func(d *dimension.Dimension) error { return d.AddChildren(parent, children) })
	if err == nil {
		db.appendJournal("ADD_CHILDREN", serializeChildren(dimName, parent, children))
	}
	return err
}

// RemoveChildren detaches children from parent within dimension dimName.
func (db *Database) RemoveChildren(dimName string, parent ids.ID, children []ids.ID) error {
	err := db.dimOp(dimName, func(d *dimension.Dimension) error { return d.RemoveChildren(parent, children) })
	if err == nil {
		db.appendJournal("REMOVE_CHILDREN", serializeElementOp(dimName, parent, idsCSV(children)))
	}
	return err
}

// DeleteElements removes targets from dimension dimName, using the
// batched O(N+D log D) path whenever len(targets) >= 2 (spec.md §9).
func (db *Database) DeleteElements(dimName string, targets []ids.ID) error {
	err := db.dimOp(dimName, func(d *dimension.Dimension) error {
		if len(targets) == 1 {
			return d.DeleteElement(targets[0])
		}
		return d.DeleteElements(targets)
	})
	if err == nil {
		db.appendJournal("DELETE_ELEMENT", serializeIDList(dimName, targets))
	}
	return err
}

// ClearElements removes every element from dimension dimName.
func (db *Database) ClearElements(dimName string) error {
	err := db.dimOp(dimName, func(d *dimension.Dimension) error {
		d.ClearElements()
		return nil
	})
	if err == nil {
		db.appendJournal("CLEAR_ELEMENTS", journalField(dimName))
	}
	return err
}

// Dimension looks up a registered dimension by name.
func (db *Database) Dimension(name string) (*dimension.Dimension, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	d, ok := db.dimensions[name]
	return d, ok
}

// Dimensions returns every registered dimension's name, in no particular
// order.
func (db *Database) Dimensions() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]string, 0, len(db.dimensions))
	for name := range db.dimensions {
		out = append(out, name)
	}
	return out
}

// AddCube creates a new cube named name over dims, in the given
// dimension order. The dimensions must already be registered with this
// database (they may also back other cubes).
func (db *Database) AddCube(name string, dims []*dimension.Dimension) (*Cube, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.cubes[name]; exists {
		return nil, molaperr.Wrap(molaperr.KindState, "Database.AddCube", molaperr.ErrNameInUse)
	}
	c := newCube(name, dims, db.cfg)
	db.cubes[name] = c
	return c, nil
}

// Cube looks up a registered cube by name.
func (db *Database) Cube(name string) (*Cube, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.cubes[name]
	return c, ok
}

// Cubes returns every registered cube's name, in no particular order.
func (db *Database) Cubes() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]string, 0, len(db.cubes))
	for name := range db.cubes {
		out = append(out, name)
	}
	return out
}

// Shutdown stops every cube's background rollback sweep. Call once
// during process shutdown, after Database is no longer serving requests.
func (db *Database) Shutdown() {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, c := range db.cubes {
		c.locks.Stop()
	}
}
