package rollback

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/stream"
)

var undoBucket = []byte("undo")

// UndoRecord is one cell's value immediately before a write under a
// Lock, so a rollback can restore it.
type UndoRecord struct {
	Key    ids.Path
	Old    stream.CellValue
	RuleID int64
}

// Lock owns the undo journal for one write transaction over Area. Append
// is called once per cell the transaction is about to overwrite, before
// the new value is installed; Rollback (via the owning Manager) replays
// those records in reverse to restore the prior state.
type Lock struct {
	ID    string
	Owner string
	Area  ids.Area

	mu sync.Mutex

	memRecords []UndoRecord
	memBytes   int64
	memBudget  int64

	fileBudget int64
	fileBytes  int64
	filePath   string
	db         *bolt.DB
	nextSeq    uint64

	lastTouch time.Time
}

func newLock(owner string, area ids.Area, memBudget, fileBudget int64, dataDir string) *Lock {
	id := uuid.NewString()
	return &Lock{
		ID:         id,
		Owner:      owner,
		Area:       area,
		memBudget:  memBudget,
		fileBudget: fileBudget,
		filePath:   fmt.Sprintf("%s/rollback-%s.db", dataDir, id),
		lastTouch:  time.Now(),
	}
}

func recordSize(rec UndoRecord) int64 {
	return int64(len(rec.Key))*4 + int64(len(rec.Old.Str)) + 48
}

// Append records rec so it can later be restored by Rollback. When the
// in-memory budget is exceeded, the accumulated records spill to a
// bbolt-backed file and memory is freed for the next batch.
func (l *Lock) Append(rec UndoRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastTouch = time.Now()
	l.memRecords = append(l.memRecords, rec)
	l.memBytes += recordSize(rec)

	if l.memBytes <= l.memBudget {
		return nil
	}
	return l.spillLocked()
}

// spillLocked writes the current in-memory batch to the spill file in
// append order and clears memory. Caller holds l.mu.
func (l *Lock) spillLocked() error {
	if l.fileBytes+l.memBytes > l.fileBudget {
		return molaperr.Wrap(molaperr.KindResource, "Lock.Append", molaperr.ErrOutOfMemory)
	}
	if l.db == nil {
		db, err := bolt.Open(l.filePath, 0o600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return molaperr.Wrap(molaperr.KindResource, "Lock.Append", err)
		}
		if err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(undoBucket)
			return err
		}); err != nil {
			db.Close()
			return molaperr.Wrap(molaperr.KindResource, "Lock.Append", err)
		}
		l.db = db
	}

	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(undoBucket)
		for _, rec := range l.memRecords {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
				return err
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, l.nextSeq)
			l.nextSeq++
			if err := b.Put(key, buf.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return molaperr.Wrap(molaperr.KindResource, "Lock.Append", err)
	}

	l.fileBytes += l.memBytes
	l.memRecords = l.memRecords[:0]
	l.memBytes = 0
	return nil
}

// Replay returns every undo record for this lock in reverse
// chronological order (most recent write first), the order Rollback
// needs to restore prior values correctly when the same cell was
// written more than once.
func (l *Lock) Replay() ([]UndoRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]UndoRecord, 0, len(l.memRecords))
	for i := len(l.memRecords) - 1; i >= 0; i-- {
		out = append(out, l.memRecords[i])
	}

	if l.db == nil {
		return out, nil
	}

	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(undoBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec UndoRecord
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, molaperr.Wrap(molaperr.KindResource, "Lock.Replay", err)
	}
	return out, nil
}

// RecordCount reports how many undo records this lock currently holds
// (memory plus spilled), mainly for tests and diagnostics.
func (l *Lock) RecordCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.memRecords)
	if l.db != nil {
		l.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(undoBucket)
			if b != nil {
				n += b.Stats().KeyN
			}
			return nil
		})
	}
	return n
}

// Close discards the lock's spill file, if any. Called on both commit
// and rollback once the journal is no longer needed.
func (l *Lock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	path := l.db.Path()
	if err := l.db.Close(); err != nil {
		return err
	}
	l.db = nil
	return os.Remove(path)
}

// IdleSince reports how long it has been since this lock last saw an
// Append, used by the sweep to find abandoned locks.
func (l *Lock) IdleSince() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Since(l.lastTouch)
}
