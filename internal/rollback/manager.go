package rollback

import (
	"context"
	"sync"
	"time"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/logx"
	"github.com/dreamware/molap/internal/molaperr"
)

// Manager owns the set of in-flight write-transaction locks for one
// database and sweeps abandoned ones on a ticker, in the same
// ctx/cancel/WaitGroup shape as the teacher's HealthMonitor.
type Manager struct {
	mu    sync.RWMutex
	locks map[string]*Lock

	dataDir    string
	memBudget  int64
	fileBudget int64
	maxIdle    time.Duration
	interval   time.Duration

	// onAbandoned, if set, is called with the still-open lock when the
	// sweep reclaims it without a commit or rollback ever arriving, so
	// the owning cube can replay its undo log and restore storage the
	// same way an explicit Rollback does, before the lock is closed.
	onAbandoned func(l *Lock)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a Manager. dataDir holds spill files for overflowing
// locks; it must already exist.
func NewManager(dataDir string, memBudget, fileBudget int64, sweepInterval, maxIdle time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		locks:      make(map[string]*Lock),
		dataDir:    dataDir,
		memBudget:  memBudget,
		fileBudget: fileBudget,
		interval:   sweepInterval,
		maxIdle:    maxIdle,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetOnAbandoned installs the callback invoked when the sweep reclaims a
// lock nobody committed or rolled back. fn must not call l.Close; the
// sweep closes the lock itself once fn returns.
func (m *Manager) SetOnAbandoned(fn func(l *Lock)) {
	m.onAbandoned = fn
}

// Acquire starts a new write transaction's undo journal over area.
func (m *Manager) Acquire(owner string, area ids.Area) *Lock {
	l := newLock(owner, area, m.memBudget, m.fileBudget, m.dataDir)
	m.mu.Lock()
	m.locks[l.ID] = l
	m.mu.Unlock()
	return l
}

// Lookup returns the lock with the given id, if still open.
func (m *Manager) Lookup(id string) (*Lock, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locks[id]
	return l, ok
}

// Commit discards a lock's journal: the transaction succeeded and its
// undo records are no longer needed.
func (m *Manager) Commit(id string) error {
	l, ok := m.takeLocked(id)
	if !ok {
		return molaperr.Wrap(molaperr.KindState, "Manager.Commit", molaperr.ErrLockConflict)
	}
	return l.Close()
}

// Rollback replays a lock's journal in reverse order, calling apply once
// per undo record to restore the prior cell value, then discards the
// lock. apply is expected to write directly to storage without going
// through the lock/journal machinery again.
func (m *Manager) Rollback(id string, apply func(UndoRecord) error) error {
	l, ok := m.takeLocked(id)
	if !ok {
		return molaperr.Wrap(molaperr.KindState, "Manager.Rollback", molaperr.ErrLockConflict)
	}
	records, err := l.Replay()
	if err != nil {
		l.Close()
		return err
	}
	for _, rec := range records {
		if err := apply(rec); err != nil {
			l.Close()
			return err
		}
	}
	return l.Close()
}

func (m *Manager) takeLocked(id string) (*Lock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if ok {
		delete(m.locks, id)
	}
	return l, ok
}

// Start runs the abandoned-lock sweep until Stop is called. Mirrors the
// teacher's HealthMonitor.Start: an immediate first pass, then a ticker
// loop selecting on the ticker and the manager's own cancellation.
func (m *Manager) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.sweep()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the sweep goroutine and waits for it to exit.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) sweep() {
	log := logx.For("rollback")

	var abandoned []*Lock
	m.mu.Lock()
	for id, l := range m.locks {
		if l.IdleSince() >= m.maxIdle {
			abandoned = append(abandoned, l)
			delete(m.locks, id)
		}
	}
	m.mu.Unlock()

	for _, l := range abandoned {
		log.Warn().Str("lock_id", l.ID).Str("owner", l.Owner).Msg("reclaiming abandoned write lock")
		if m.onAbandoned != nil {
			m.onAbandoned(l)
		}
		if err := l.Close(); err != nil {
			log.Error().Err(err).Str("lock_id", l.ID).Msg("failed to close abandoned lock's spill file")
		}
	}
}

// Len reports the number of currently open locks.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.locks)
}
