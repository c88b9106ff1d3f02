package stream

import (
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
)

// Stream is the pull-based, single-threaded iterator every storage and
// plan node in the engine exposes (spec.md §4.4, §4.1, §9 "coroutine-shaped
// iterators"). Implementations are not safe to share across goroutines;
// a request's fan-out instead builds one stream per job.
type Stream interface {
	// Next advances to the next record in ascending key order and
	// reports whether one exists. Once Next returns false, GetKey
	// returns an empty Path and GetValue returns EmptyValue.
	Next() bool

	// GetKey returns the current record's key. Only valid after Next (or
	// Move) returned true.
	GetKey() ids.Path

	// GetValue returns the current record's value.
	GetValue() CellValue

	// GetDouble is a convenience for GetValue().AsDouble().
	GetDouble() float64

	// Move positions the stream at the smallest record whose key is >=
	// key, reporting found = (current key == key). Returns false if no
	// such record exists (stream is exhausted).
	Move(key ids.Path) (found bool, ok bool)

	// Reset repositions the stream before its first record.
	Reset()

	// GetBinKey returns the packed/GPU bin-key encoding of the current
	// key. Implementations that don't target that backend return
	// ErrUnsupported (spec.md §9, SPEC_FULL.md Supplemented Features #1).
	GetBinKey() ([]byte, error)
}

// ErrBinKeyUnsupported is returned by GetBinKey implementations that
// don't carry a packed encoding.
var ErrBinKeyUnsupported = molaperr.Wrap(molaperr.KindEvaluation, "GetBinKey", molaperr.ErrUnsupported)

// Record is a materialized (key, value) pair, used by slice-backed
// streams and by callers that want to buffer a stream's output.
type Record struct {
	Key   ids.Path
	Value CellValue
}
