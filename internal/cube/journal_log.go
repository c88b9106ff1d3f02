package cube

import (
	"strings"

	"github.com/dreamware/molap/internal/aggregate"
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/journal"
	"github.com/dreamware/molap/internal/logx"
	"github.com/dreamware/molap/internal/rule"
	"github.com/dreamware/molap/internal/stream"
)

// appendJournal records one mutation to the cube's journal, if one has
// been wired via WireJournal. A cube created without a journal (tests,
// scratch cubes) silently skips logging rather than erroring every
// write.
func (c *Cube) appendJournal(event, command string) {
	if c.log == nil {
		return
	}
	if err := c.log.Append(event, command); err != nil {
		logx.For("cube").Error().Err(err).Str("cube", c.Name).Str("event", event).Msg("journal append failed")
	}
}

// serializeSetCell encodes a direct cell write as a journal command line:
// the path as an int list, then the value's kind, number, and string.
func serializeSetCell(path ids.Path, value stream.CellValue) string {
	var b strings.Builder
	fw := journal.NewFileWriter(&b)
	fw.IntList(pathInts(path))
	writeCellValue(fw, value)
	fw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// serializeSplash encodes a consolidated-cell write: the target path,
// the splash mode, then the value written at that target.
func serializeSplash(path ids.Path, value stream.CellValue, mode aggregate.SplashMode) string {
	var b strings.Builder
	fw := journal.NewFileWriter(&b)
	fw.IntList(pathInts(path))
	fw.Integer(int64(mode))
	writeCellValue(fw, value)
	fw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func writeCellValue(fw *journal.FileWriter, value stream.CellValue) {
	fw.Integer(int64(value.Kind))
	switch value.Kind {
	case stream.String:
		fw.Field(value.Str)
	default:
		fw.Float(value.Num)
	}
}

// serializeRule encodes a rule definition: its id, target area, and
// source text.
func serializeRule(r *rule.Rule) string {
	var b strings.Builder
	fw := journal.NewFileWriter(&b)
	fw.Integer(r.ID)
	fw.Field(areaKey(r.Target))
	fw.Field(r.Text)
	fw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// serializeLock encodes a lock's id and owner, used for LOCK_ACQUIRE.
func serializeLock(lockID, owner string) string {
	var b strings.Builder
	fw := journal.NewFileWriter(&b)
	fw.Field(lockID)
	fw.Field(owner)
	fw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func serializeLockID(lockID string) string {
	var b strings.Builder
	fw := journal.NewFileWriter(&b)
	fw.Field(lockID)
	fw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func serializeRuleID(id int64) string {
	var b strings.Builder
	fw := journal.NewFileWriter(&b)
	fw.Integer(id)
	fw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// journalField builds a generic escaped-field command payload for
// structural dimension operations, which don't need the richer
// path/value encoding cell writes use.
func journalField(fields ...string) string {
	var b strings.Builder
	fw := journal.NewFileWriter(&b)
	for _, f := range fields {
		fw.Field(f)
	}
	fw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func pathInts(path ids.Path) []int64 {
	out := make([]int64, len(path))
	for i, id := range path {
		out[i] = int64(id)
	}
	return out
}
