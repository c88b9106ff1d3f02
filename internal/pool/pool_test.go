package pool_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/molap/internal/pool"
)

func TestGoRunsJobAndJoinWaits(t *testing.T) {
	p := pool.New(4, nil)
	defer p.Shutdown()

	var ran int32
	tg := p.Go(func() { atomic.AddInt32(&ran, 1) })
	tg.Join()

	require.EqualValues(t, 1, ran)
	require.Equal(t, 0, tg.Pending())
}

func TestThreadGroupJoinWaitsForAllSubmittedJobs(t *testing.T) {
	p := pool.New(4, nil)
	defer p.Shutdown()

	tg := pool.NewThreadGroup()
	var count int32
	const n = 50
	for i := 0; i < n; i++ {
		p.Submit(tg, pool.Normal, func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&count, 1)
		})
	}
	tg.Join()

	require.EqualValues(t, n, count)
}

func TestJobPanicIsRecoveredAndGroupStillReleases(t *testing.T) {
	p := pool.New(2, nil)
	defer p.Shutdown()

	tg := pool.NewThreadGroup()
	p.Submit(tg, pool.Normal, func() { panic("boom") })

	done := make(chan struct{})
	go func() {
		tg.Join()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Join did not return after a panicking job")
	}
}

func TestImmediatePriorityGrowsHighPriorityWorkers(t *testing.T) {
	// A single-worker pool whose one normal worker is kept busy; an
	// Immediate-priority submission must therefore spin up a dedicated
	// high-priority worker rather than waiting behind the busy normal one.
	p := pool.New(1, nil)
	defer p.Shutdown()

	blockNormal := make(chan struct{})
	normalStarted := make(chan struct{})
	p.Submit(pool.NewThreadGroup(), pool.Normal, func() {
		close(normalStarted)
		<-blockNormal
	})
	<-normalStarted

	tg := pool.NewThreadGroup()
	var ranHP int32
	hpDone := make(chan struct{})
	p.Submit(tg, pool.Immediate, func() {
		atomic.AddInt32(&ranHP, 1)
		close(hpDone)
	})

	select {
	case <-hpDone:
	case <-time.After(time.Second):
		t.Fatal("high-priority job never ran while the normal worker was busy")
	}
	require.EqualValues(t, 1, ranHP)
	close(blockNormal)
}

func TestShutdownIsIdempotentAndStopsWorkers(t *testing.T) {
	p := pool.New(3, nil)
	p.Shutdown()
	require.NotPanics(t, p.Shutdown)
}

func TestSubmitIsSafeForConcurrentCallers(t *testing.T) {
	p := pool.New(8, nil)
	defer p.Shutdown()

	var wg sync.WaitGroup
	var total int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tg := p.Go(func() { atomic.AddInt32(&total, 1) })
			tg.Join()
		}()
	}
	wg.Wait()
	require.EqualValues(t, 20, total)
}
