package pool

import "sync"

// semaphore is a counting semaphore: release(n) adds n to the count and
// wait() blocks until the count is positive, then consumes one. It
// mirrors the boost::interprocess_semaphore the original thread pool
// waits on for both its normal and high-priority wakeup signals.
type semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

func newSemaphore() *semaphore {
	s := &semaphore{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *semaphore) release(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.count += n
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *semaphore) wait() {
	s.mu.Lock()
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
	s.mu.Unlock()
}
