package cube

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dreamware/molap/internal/aggregate"
	"github.com/dreamware/molap/internal/config"
	"github.com/dreamware/molap/internal/dimension"
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/journal"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/rule"
	"github.com/dreamware/molap/internal/stream"
)

// SaveSnapshot writes one file per dimension and one per cube into dir,
// each a self-contained replay log that LoadDatabase can rebuild the
// database from without needing any journal at all (spec.md §4.12: "the
// engine loads the snapshot files, then replays journal files"). Existing
// snapshot files at the same paths are replaced atomically.
func (db *Database) SaveSnapshot(dir string) error {
	db.mu.RLock()
	dimNames := make([]string, 0, len(db.dimensions))
	for name := range db.dimensions {
		dimNames = append(dimNames, name)
	}
	cubeNames := make([]string, 0, len(db.cubes))
	for name := range db.cubes {
		cubeNames = append(cubeNames, name)
	}
	db.mu.RUnlock()
	sort.Strings(dimNames)
	sort.Strings(cubeNames)

	for _, name := range dimNames {
		d, ok := db.Dimension(name)
		if !ok {
			continue
		}
		if err := saveDimensionSnapshot(filepath.Join(dir, "dim_"+name+".snap"), d); err != nil {
			return err
		}
	}
	for _, name := range cubeNames {
		c, ok := db.Cube(name)
		if !ok {
			continue
		}
		if err := saveCubeSnapshot(filepath.Join(dir, "cube_"+name+".snap"), name, c); err != nil {
			return err
		}
	}

	// A journal's job is to cover the gap between the last snapshot and
	// now; once this save lands, everything before it is redundant.
	// Rotating immediately means the next startup's replay only has to
	// read the live segment rather than hunt down every rotated backup.
	if db.log != nil {
		if err := db.log.Rotate(); err != nil {
			return molaperr.Wrap(molaperr.KindResource, "Database.SaveSnapshot", err)
		}
	}
	for _, name := range cubeNames {
		c, ok := db.Cube(name)
		if !ok || c.log == nil {
			continue
		}
		if err := c.log.Rotate(); err != nil {
			return molaperr.Wrap(molaperr.KindResource, "Database.SaveSnapshot", err)
		}
	}
	return nil
}

func saveDimensionSnapshot(path string, d *dimension.Dimension) error {
	return journal.SaveSnapshot(path, func(fw *journal.FileWriter) error {
		fw.Section("DIMENSION")
		writeLine(fw, "ADD_DIMENSION", journalField(d.Name()))

		all := d.AllIDs()
		sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
		for _, id := range all {
			e, err := d.Element(id)
			if err != nil {
				continue
			}
			writeLine(fw, "ADD_ELEMENT", serializeAddElement(d.Name(), e.Name, e.Kind))
		}
		for _, id := range all {
			children := d.Children(id)
			if len(children) == 0 {
				continue
			}
			writeLine(fw, "ADD_CHILDREN", serializeChildren(d.Name(), id, children))
		}
		return nil
	})
}

func saveCubeSnapshot(path, name string, c *Cube) error {
	return journal.SaveSnapshot(path, func(fw *journal.FileWriter) error {
		fw.Section("CUBE")
		dimNames := make([]string, len(c.Dims))
		for i, d := range c.Dims {
			dimNames[i] = d.Name()
		}
		writeLine(fw, "ADD_CUBE", journalField(append([]string{name}, dimNames...)...))

		for _, r := range c.ListRules() {
			writeLine(fw, "RULE_ADD", serializeRule(r))
		}

		all := make([]ids.DimSelector, len(c.Dims))
		for i := range c.Dims {
			all[i] = ids.AllDim()
		}
		s := c.Storage.GetCellValues(ids.NewArea(all...))
		for s.Next() {
			writeLine(fw, "SET_CELL", serializeSetCell(s.GetKey(), s.GetValue()))
		}
		return nil
	})
}

// writeLine emits one "event;payload;" record line, where payload is
// itself an already-field-joined string (the same shape appendJournal's
// CommandWriter produces, minus the leading timestamp).
func writeLine(fw *journal.FileWriter, event, payload string) {
	fw.Field(event)
	fw.RawField(payload)
	fw.EndLine()
}

// LoadDatabase rebuilds a Database from the snapshot and journal files
// under dir: every dim_*.snap, then every cube_*.snap (which may itself
// reference dimensions by name, so dimensions load first), then the
// database's own structural journal, then each cube's journal. Journal
// files are replayed in full against their own snapshot rather than
// merged with other files by timestamp: a cube's cell and rule
// operations have no correctness-relevant ordering dependency on
// dimension operations recorded after the cube's elements already
// existed, since element ids are never reused once freed.
func LoadDatabase(cfg config.Config, dir string) (*Database, error) {
	db := NewDatabase(cfg)

	dimFiles, err := filepath.Glob(filepath.Join(dir, "dim_*.snap"))
	if err != nil {
		return nil, molaperr.Wrap(molaperr.KindResource, "LoadDatabase", err)
	}
	sort.Strings(dimFiles)
	for _, f := range dimFiles {
		if err := replayLines(f, false, db.applyDimCommand); err != nil {
			return nil, err
		}
	}

	cubeFiles, err := filepath.Glob(filepath.Join(dir, "cube_*.snap"))
	if err != nil {
		return nil, molaperr.Wrap(molaperr.KindResource, "LoadDatabase", err)
	}
	sort.Strings(cubeFiles)
	for _, f := range cubeFiles {
		if err := db.replayCubeFile(f); err != nil {
			return nil, err
		}
	}

	if err := replayLines(filepath.Join(dir, "db.journal"), true, db.applyDimCommand); err != nil {
		return nil, err
	}

	db.mu.RLock()
	cubeNames := make([]string, 0, len(db.cubes))
	for name := range db.cubes {
		cubeNames = append(cubeNames, name)
	}
	db.mu.RUnlock()
	for _, name := range cubeNames {
		c, _ := db.Cube(name)
		if err := replayLines(filepath.Join(dir, "cube_"+name+".journal"), true, c.applyCommand); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// replayLines reads path line by line, dispatching every record line's
// (event, payload) pair to apply. Missing files are treated as "nothing
// to replay" rather than an error, since a fresh database has no
// journals yet. withTimestamp selects the field layout a live
// CommandWriter-produced journal uses (leading timestamp field) versus
// the layout SaveSnapshot's own writeLine produces (no timestamp).
func replayLines(path string, withTimestamp bool, apply func(event string, payload []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return molaperr.Wrap(molaperr.KindResource, "replayLines", err)
	}
	defer f.Close()

	r := journal.NewReader(f)
	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return molaperr.Wrap(molaperr.KindResource, "replayLines", err)
		}
		if line.Kind != journal.LineRecord {
			continue
		}
		var event string
		var payload []string
		if withTimestamp {
			event, payload = splitJournalLine(line.Fields)
		} else {
			event, payload = splitSnapshotLine(line.Fields)
		}
		if event == "" {
			continue
		}
		if err := apply(event, payload); err != nil {
			return err
		}
	}
	return nil
}

// trimTrailingEmpty drops the empty token SplitFields always produces
// for a line's closing ';' (journal/format.go's SplitFields docs this
// explicitly).
func trimTrailingEmpty(fields []string) []string {
	if len(fields) > 0 && fields[len(fields)-1] == "" {
		return fields[:len(fields)-1]
	}
	return fields
}

func splitSnapshotLine(fields []string) (string, []string) {
	fields = trimTrailingEmpty(fields)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func splitJournalLine(fields []string) (string, []string) {
	fields = trimTrailingEmpty(fields)
	if len(fields) < 2 {
		return "", nil
	}
	return fields[1], fields[2:]
}

// applyDimCommand replays one structural command against the database,
// mirroring Database's own AddDimension/AddElement/... but addressing
// elements by the id the journal recorded instead of allocating a fresh
// one (ADD_ELEMENT is the one exception: Dimension.allocID always hands
// out the smallest free id, so replaying the same sequence of additions
// against a fresh dimension reproduces the original ids without needing
// to carry them).
func (db *Database) applyDimCommand(event string, payload []string) error {
	switch event {
	case "ADD_DIMENSION":
		_, err := db.AddDimension(payload[0])
		return err
	case "ADD_ELEMENT":
		kind, err := parseKind(payload[2])
		if err != nil {
			return err
		}
		_, err = db.AddElement(payload[0], payload[1], kind)
		return err
	case "RENAME_ELEMENT":
		id, err := parseID(payload[1])
		if err != nil {
			return err
		}
		return db.RenameElement(payload[0], id, payload[2])
	case "CHANGE_ELEMENT":
		id, err := parseID(payload[1])
		if err != nil {
			return err
		}
		kind, err := parseKind(payload[2])
		if err != nil {
			return err
		}
		return db.ChangeType(payload[0], id, kind)
	case "MOVE_ELEMENT":
		id, err := parseID(payload[1])
		if err != nil {
			return err
		}
		pos, err := strconv.Atoi(payload[2])
		if err != nil {
			return molaperr.Wrap(molaperr.KindInput, "applyDimCommand", molaperr.ErrInvalidPath)
		}
		return db.MoveElement(payload[0], id, pos)
	case "ADD_CHILDREN":
		parent, err := parseID(payload[1])
		if err != nil {
			return err
		}
		childVals, err := journal.ParseIntList(payload[2])
		if err != nil {
			return molaperr.Wrap(molaperr.KindInput, "applyDimCommand", molaperr.ErrInvalidPath)
		}
		weights, err := splitWeights(payload[3], len(childVals))
		if err != nil {
			return err
		}
		children := make([]dimension.ChildWeight, len(childVals))
		for i, cv := range childVals {
			children[i] = dimension.ChildWeight{Child: ids.ID(cv), Weight: weights[i]}
		}
		return db.AddChildren(payload[0], parent, children)
	case "REMOVE_CHILDREN":
		parent, err := parseID(payload[1])
		if err != nil {
			return err
		}
		children, err := parseIDsCSV(payload[2])
		if err != nil {
			return err
		}
		return db.RemoveChildren(payload[0], parent, children)
	case "DELETE_ELEMENT":
		vals, err := journal.ParseIntList(payload[1])
		if err != nil {
			return molaperr.Wrap(molaperr.KindInput, "applyDimCommand", molaperr.ErrInvalidPath)
		}
		targets := make([]ids.ID, len(vals))
		for i, v := range vals {
			targets[i] = ids.ID(v)
		}
		return db.DeleteElements(payload[0], targets)
	case "CLEAR_ELEMENTS":
		return db.ClearElements(payload[0])
	default:
		return nil
	}
}

func splitWeights(s string, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	vals, err := splitCSVFloats(s)
	if err != nil || len(vals) != n {
		return nil, molaperr.Wrap(molaperr.KindInput, "splitWeights", molaperr.ErrInvalidPath)
	}
	return vals, nil
}

// replayCubeFile replays one cube_<name>.snap file: its leading ADD_CUBE
// line creates the cube (resolving its dimensions, which must already be
// loaded), then every following RULE_ADD/SET_CELL line replays against it.
func (db *Database) replayCubeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return molaperr.Wrap(molaperr.KindResource, "replayCubeFile", err)
	}
	defer f.Close()

	r := journal.NewReader(f)
	var c *Cube
	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return molaperr.Wrap(molaperr.KindResource, "replayCubeFile", err)
		}
		if line.Kind != journal.LineRecord {
			continue
		}
		event, payload := splitSnapshotLine(line.Fields)
		if event == "" {
			continue
		}
		if event == "ADD_CUBE" {
			name := payload[0]
			dimNames := payload[1:]
			dims := make([]*dimension.Dimension, len(dimNames))
			for i, dn := range dimNames {
				d, ok := db.Dimension(dn)
				if !ok {
					return molaperr.Wrap(molaperr.KindState, "replayCubeFile", molaperr.ErrElementNotFound)
				}
				dims[i] = d
			}
			created, err := db.AddCube(name, dims)
			if err != nil {
				return err
			}
			c = created
			continue
		}
		if c == nil {
			return molaperr.Wrap(molaperr.KindState, "replayCubeFile", molaperr.ErrElementNotFound)
		}
		if err := c.applyCommand(event, payload); err != nil {
			return err
		}
	}
	return nil
}

// applyCommand replays one cell/rule/lock command against the cube.
// LOCK_ACQUIRE and LOCK_COMMIT never change cell state, and a
// LOCK_ROLLBACK's effect is already captured as the SET_CELL lines
// RollbackLock journals alongside it, so all three are no-ops here.
func (c *Cube) applyCommand(event string, payload []string) error {
	switch event {
	case "SET_CELL":
		path, err := parsePathCSV(payload[0])
		if err != nil {
			return err
		}
		value, err := parseCellValue(payload[1], payload[2])
		if err != nil {
			return err
		}
		return c.SetCellValue(path, value, aggregate.SplashEqual, "")
	case "SET_CELL_AREA":
		path, err := parsePathCSV(payload[0])
		if err != nil {
			return err
		}
		modeN, err := strconv.Atoi(payload[1])
		if err != nil {
			return molaperr.Wrap(molaperr.KindInput, "Cube.applyCommand", molaperr.ErrInvalidPath)
		}
		value, err := parseCellValue(payload[2], payload[3])
		if err != nil {
			return err
		}
		return c.SetCellValue(path, value, aggregate.SplashMode(modeN), "")
	case "RULE_ADD":
		return c.replayRule(payload)
	case "RULE_MODIFY":
		id, target, text, err := c.decodeRulePayload(payload)
		if err != nil {
			return err
		}
		_, err = c.ModifyRule(id, text, target)
		return err
	case "RULE_DELETE":
		id, err := strconv.ParseInt(payload[0], 10, 64)
		if err != nil {
			return molaperr.Wrap(molaperr.KindInput, "Cube.applyCommand", molaperr.ErrInvalidPath)
		}
		return c.DeleteRule(id)
	case "LOCK_ACQUIRE", "LOCK_COMMIT", "LOCK_ROLLBACK":
		return nil
	default:
		return nil
	}
}

func (c *Cube) replayRule(payload []string) error {
	id, target, text, err := c.decodeRulePayload(payload)
	if err != nil {
		return err
	}
	r, err := rule.New(id, text, target, len(c.Dims), dimResolver{c})
	if err != nil {
		return err
	}
	c.restoreRule(r)
	return nil
}

// decodeRulePayload parses a RULE_ADD/RULE_MODIFY command's (id, area
// key, text) fields, resolving the area key against the cube's own
// dimension count.
func (c *Cube) decodeRulePayload(payload []string) (int64, ids.Area, string, error) {
	id, err := strconv.ParseInt(payload[0], 10, 64)
	if err != nil {
		return 0, ids.Area{}, "", molaperr.Wrap(molaperr.KindInput, "decodeRulePayload", molaperr.ErrInvalidPath)
	}
	target, err := parseAreaKey(payload[1], len(c.Dims))
	if err != nil {
		return 0, ids.Area{}, "", err
	}
	return id, target, payload[2], nil
}

func parseID(s string) (ids.ID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, molaperr.Wrap(molaperr.KindInput, "parseID", molaperr.ErrInvalidPath)
	}
	return ids.ID(n), nil
}

func parsePathCSV(s string) (ids.Path, error) {
	vals, err := journal.ParseIntList(s)
	if err != nil {
		return nil, molaperr.Wrap(molaperr.KindInput, "parsePathCSV", molaperr.ErrInvalidPath)
	}
	path := make(ids.Path, len(vals))
	for i, v := range vals {
		path[i] = ids.ID(v)
	}
	return path, nil
}

// parseCellValue reconstructs a stream.CellValue from a journaled
// (kind, value) field pair, the inverse of writeCellValue.
func parseCellValue(kindStr, valStr string) (stream.CellValue, error) {
	k, err := strconv.Atoi(kindStr)
	if err != nil {
		return stream.CellValue{}, molaperr.Wrap(molaperr.KindInput, "parseCellValue", molaperr.ErrInvalidPath)
	}
	switch stream.ValueKind(k) {
	case stream.String:
		return stream.StringVal(valStr), nil
	case stream.Numeric:
		v, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return stream.CellValue{}, molaperr.Wrap(molaperr.KindInput, "parseCellValue", molaperr.ErrInvalidPath)
		}
		return stream.NumberValue(v), nil
	default:
		return stream.EmptyValue, nil
	}
}

func splitCSVFloats(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	var out []float64
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			v, err := strconv.ParseFloat(s[start:i], 64)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			start = i + 1
		}
	}
	return out, nil
}
