package journal

import (
	"fmt"
	"sync"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// CommandWriter is the append-only mutation log (spec.md §4.12, §6): one
// line per structural or cell change (ADD_ELEMENT, SET_CELL, RULE_ADD,
// ...), timestamped so a restart can replay from a point at or after the
// last snapshot's save time. Rotation at ~100 MB is delegated to
// lumberjack rather than reimplemented the way the original engine's
// JournalFileWriter numbers _0, _1, ... files itself.
//
// A cube's cells can be written concurrently (engine.CellReplaceBulk fans
// rows out across a worker pool), and every such write appends to the
// same underlying file, so mu serializes Append against Rotate and Close
// rather than leaving that to the caller.
type CommandWriter struct {
	mu  sync.Mutex
	fw  *FileWriter
	lj  *lumberjack.Logger
	now func() time.Time
}

// NewCommandWriter opens (or creates) the journal at path, rotating once
// it exceeds maxBytes.
func NewCommandWriter(path string, maxBytes int64) *CommandWriter {
	lj := &lumberjack.Logger{
		Filename: path,
		MaxSize:  maxMB(maxBytes),
		Compress: false,
	}
	return &CommandWriter{fw: NewFileWriter(lj), lj: lj, now: time.Now}
}

func maxMB(maxBytes int64) int {
	mb := int(maxBytes / (1 << 20))
	if mb < 1 {
		mb = 1
	}
	return mb
}

// Append writes one journal line: timestamp;event;command;
// event is one of the operation names spec.md §6 lists (ADD_ELEMENT,
// DELETE_ELEMENT, SET_CELL, RULE_ADD, ...); command is the already
// serialized operation payload (typically built with a FileWriter over
// a strings.Builder by the caller).
func (c *CommandWriter) Append(event, command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now()
	c.fw.RawField(fmt.Sprintf("%d.%06d", ts.Unix(), ts.Nanosecond()/1000))
	c.fw.Field(event)
	c.fw.RawField(command)
	c.fw.EndLine()
	return c.fw.Flush()
}

// Rotate forces an immediate rotation, used after a successful snapshot
// save so replay on restart only has to look at journals newer than it.
func (c *CommandWriter) Rotate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lj.Rotate()
}

// Close flushes and closes the underlying file.
func (c *CommandWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fw.Flush(); err != nil {
		return err
	}
	return c.lj.Close()
}
