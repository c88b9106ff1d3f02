package pool

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreamware/molap/internal/logx"
)

// Priority selects which queue a job is pushed to and how urgently the
// pool reacts to it (spec.md §4.2).
type Priority int

const (
	// Normal jobs join the FIFO queue served by the fixed worker pool.
	Normal Priority = iota
	// High jobs join the high-priority deque's back.
	High
	// Immediate jobs jump to the high-priority deque's front.
	Immediate
)

// Job is a unit of work submitted to the pool.
type Job func()

type queuedJob struct {
	job Job
	tg  *ThreadGroup
}

// Pool is a fixed-size normal-priority worker pool backed by a
// high-priority pool grown on demand. initSize normal workers are
// started eagerly; high-priority workers are created lazily the first
// time a high/immediate job arrives and every normal worker is busy, and
// are never shrunk back (spec.md §4.2).
type Pool struct {
	mu      sync.Mutex
	tasks   []queuedJob // normal FIFO queue
	hpTasks []queuedJob // high-priority deque; Immediate prepends, High appends

	wakeup   *semaphore // normal workers wait here
	hpWakeup *semaphore // high-priority workers wait here
	stopped  sync.WaitGroup

	stop bool

	threads       int
	hpThreads     int
	freeThreads   int
	hpFreeThreads int

	gauges *gauges
}

// DefaultInitSize returns max(16, 2*GOMAXPROCS), the startup worker count
// used when no explicit size is configured (spec.md §4.2).
func DefaultInitSize() int {
	n := runtime.GOMAXPROCS(0) * 2
	if n < 16 {
		n = 16
	}
	return n
}

// New builds a pool with initSize normal workers (DefaultInitSize if
// initSize <= 0) and registers its gauges with reg, which may be nil.
func New(initSize int, reg prometheus.Registerer) *Pool {
	if initSize <= 0 {
		initSize = DefaultInitSize()
	}
	p := &Pool{
		wakeup:   newSemaphore(),
		hpWakeup: newSemaphore(),
		gauges:   newGauges(reg),
	}
	for i := 0; i < initSize; i++ {
		p.threads++
		p.spawnWorker(false)
	}
	p.updateGauges()
	return p
}

func (p *Pool) spawnWorker(hpOnly bool) {
	p.stopped.Add(1)
	go p.runWorker(hpOnly)
}

// Submit queues job under priority, tagged with tg (use NewThreadGroup
// for a fresh group, or share one across a fan-out). tg's counter is
// incremented before Submit returns and decremented once the job
// finishes, panic or not.
func (p *Pool) Submit(tg *ThreadGroup, priority Priority, job Job) {
	tg.add(1)

	p.mu.Lock()
	switch priority {
	case Immediate:
		p.hpTasks = append([]queuedJob{{job: job, tg: tg}}, p.hpTasks...)
	case High:
		p.hpTasks = append(p.hpTasks, queuedJob{job: job, tg: tg})
	default:
		p.tasks = append(p.tasks, queuedJob{job: job, tg: tg})
	}

	useHP := false
	if priority != Normal && p.freeThreads == 0 {
		useHP = true
		if p.hpFreeThreads == 0 {
			p.hpThreads++
			p.spawnWorker(true)
		}
	}
	p.mu.Unlock()
	p.updateGauges()

	if useHP {
		p.hpWakeup.release(1)
	} else {
		p.wakeup.release(1)
	}
}

// Go is shorthand for Submit with Normal priority under a fresh
// ThreadGroup, returning the group so the caller can Join.
func (p *Pool) Go(job Job) *ThreadGroup {
	tg := NewThreadGroup()
	p.Submit(tg, Normal, job)
	return tg
}

func (p *Pool) runWorker(hpOnly bool) {
	defer p.stopped.Done()

	p.mu.Lock()
	if hpOnly {
		p.hpFreeThreads++
	} else {
		p.freeThreads++
	}
	p.mu.Unlock()

	for {
		if hpOnly {
			p.hpWakeup.wait()
		} else {
			p.wakeup.wait()
		}

		p.mu.Lock()
		if p.stop {
			p.mu.Unlock()
			return
		}
		if hpOnly {
			p.hpFreeThreads--
		} else {
			p.freeThreads--
		}
		qj, ok := p.dequeueLocked()
		p.mu.Unlock()
		p.updateGauges()

		if ok {
			p.runJob(qj)
		}

		p.mu.Lock()
		if hpOnly {
			p.hpFreeThreads++
		} else {
			p.freeThreads++
		}
		p.mu.Unlock()
	}
}

// dequeueLocked pops the next job, preferring the high-priority deque so
// a normal worker woken by a high-priority submission still picks up the
// high-priority job ahead of any older normal one.
func (p *Pool) dequeueLocked() (queuedJob, bool) {
	if len(p.hpTasks) > 0 {
		qj := p.hpTasks[0]
		p.hpTasks = p.hpTasks[1:]
		return qj, true
	}
	if len(p.tasks) > 0 {
		qj := p.tasks[0]
		p.tasks = p.tasks[1:]
		return qj, true
	}
	return queuedJob{}, false
}

// runJob executes qj.job, recovering any panic so one bad job can't take
// down a worker goroutine, and releases qj.tg under every exit path
// (spec.md §4.2 "exceptions propagate to the job wrapper which must
// decrement the group counter under all exit paths").
func (p *Pool) runJob(qj queuedJob) {
	defer qj.tg.release()
	defer func() {
		if r := recover(); r != nil {
			logx.For("pool").Error().Interface("panic", r).Msg("pool job panicked")
		}
	}()
	qj.job()
}

func (p *Pool) updateGauges() {
	p.mu.Lock()
	normalQ, hpQ := len(p.tasks), len(p.hpTasks)
	normalW, hpW := p.threads, p.hpThreads
	p.mu.Unlock()
	p.gauges.setQueueDepth(normalQ, hpQ)
	p.gauges.setWorkers(normalW, hpW)
}

// Shutdown sets the stop flag, releases both wakeup semaphores once per
// live worker, and blocks until every worker has exited (spec.md §4.2).
// Jobs already queued but not yet dequeued are dropped; Shutdown is
// idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.stop {
		p.mu.Unlock()
		return
	}
	p.stop = true
	threads, hpThreads := p.threads, p.hpThreads
	p.mu.Unlock()

	p.wakeup.release(threads)
	p.hpWakeup.release(hpThreads)
	p.stopped.Wait()
}
