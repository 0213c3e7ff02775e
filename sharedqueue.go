package fiber

import (
	"sync"
	"time"
)

// SharedQueuePool is the cross-thread state backing spec §4.3(2), "Shared
// ready queue (work sharing)": a single mutex-guarded FIFO shared by every
// thread that joins the pool. It is grounded directly on
// original_source/examples/work_sharing.cpp's shared_ready_queue, whose
// rqueue_/mtx_ were `static` (one instance shared by every thread-local
// algorithm object); in Go that's modeled explicitly as this Pool, shared
// by pointer, with one lightweight per-thread *sharedQueue adapter per
// participating Scheduler.
type SharedQueuePool struct {
	mu     sync.Mutex
	queue  *readyQueue
	parked map[*Scheduler]struct{}
}

// NewSharedQueuePool creates an empty work-sharing pool. Call Join once per
// participating thread to obtain that thread's Algorithm.
func NewSharedQueuePool() *SharedQueuePool {
	return &SharedQueuePool{
		queue:  newReadyQueue(),
		parked: make(map[*Scheduler]struct{}),
	}
}

// Join returns a new Algorithm for one more participating thread, sharing
// this pool's queue. Pass the result to NewScheduler.
func (p *SharedQueuePool) Join() Algorithm {
	return &sharedQueue{pool: p}
}

func (p *SharedQueuePool) wakeOne() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for s := range p.parked {
		delete(p.parked, s)
		s.wakeParked()
		return
	}
}

func (p *SharedQueuePool) wakeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for s := range p.parked {
		delete(p.parked, s)
		s.wakeParked()
	}
}

// sharedQueue is the per-thread Algorithm adapter joining a SharedQueuePool.
// mainCtx/dispatcherCtx are private per-instance slots, never placed on the
// shared queue: resuming thread A's main fiber on thread B would be unsound
// (spec §4.3, §9).
type sharedQueue struct {
	pool *SharedQueuePool

	mainCtx       *Context
	dispatcherCtx *Context

	self *Scheduler
}

func (a *sharedQueue) bindScheduler(s *Scheduler) { a.self = s }

func (a *sharedQueue) Awakened(ctx *Context) {
	switch ctx.Role() {
	case RoleMain:
		a.mainCtx = ctx
	case RoleDispatcher:
		a.dispatcherCtx = ctx
	default:
		a.pool.mu.Lock()
		a.pool.queue.push(ctx)
		a.pool.mu.Unlock()
		a.pool.wakeOne()
	}
}

func (a *sharedQueue) PickNext() *Context {
	a.pool.mu.Lock()
	ctx := a.pool.queue.pop()
	a.pool.mu.Unlock()
	if ctx != nil {
		return ctx
	}
	// Nothing in the ready queue: fall back to this thread's own main,
	// then its own dispatcher (spec §4.3 rationale: "when the dispatcher
	// parks the thread it must be able to pick its own main back up even
	// when global work is momentarily absent").
	if a.mainCtx != nil {
		ctx, a.mainCtx = a.mainCtx, nil
		return ctx
	}
	if a.dispatcherCtx != nil {
		ctx, a.dispatcherCtx = a.dispatcherCtx, nil
		return ctx
	}
	return nil
}

// HasReady considers only the shared queue and this thread's own stashed
// main slot — never the dispatcher slot. This exact predicate is named as
// an open question spec.md resolves explicitly (spec §9); external
// has_ready_fibers()-style drain loops depend on it.
func (a *sharedQueue) HasReady() bool {
	a.pool.mu.Lock()
	nonEmpty := !a.pool.queue.empty()
	a.pool.mu.Unlock()
	return nonEmpty || a.mainCtx != nil
}

func (a *sharedQueue) Notify() {
	a.pool.wakeAll()
}

func (a *sharedQueue) Park(maxWait time.Duration) {
	if a.self == nil {
		return
	}
	a.pool.mu.Lock()
	a.pool.parked[a.self] = struct{}{}
	a.pool.mu.Unlock()
	a.self.defaultPark(maxWait)
	a.pool.mu.Lock()
	delete(a.pool.parked, a.self)
	a.pool.mu.Unlock()
}
