package fiber

import (
	"sync"
	"time"
)

// CondVar is the fiber-aware condition variable of spec §4.6. Like Mutex,
// its waiter list is a plain slice private to the CondVar, not the
// scheduler's intrusive queues, so a timed Wait can be linked into both
// the CondVar and the scheduler's deadline sweep at once without the two
// fighting over a single next pointer.
type CondVar struct {
	mu      sync.Mutex
	waiting []*Context
}

// NewCondVar creates an empty condition variable.
func NewCondVar() *CondVar { return &CondVar{} }

// Wait atomically unlocks m and suspends the calling fiber until woken by
// NotifyOne/NotifyAll, which transfers m's ownership directly to this
// waiter (spec §4.6) — so by the time Wait returns, m is already held
// again, with no separate re-contention step. Spurious wakeups never
// occur, but spec §4.6 still requires callers to loop on their predicate,
// matching every other condvar API in the ecosystem.
func (c *CondVar) Wait(m *Mutex, s *Scheduler) {
	c.enqueue(m, s, time.Time{})
}

// WaitUntil behaves like Wait but also returns true if deadline elapsed
// before any notification reached this waiter (spec §4.6, "wait_until ...
// surfaces a timeout outcome"). The mutex is held on return either way.
func (c *CondVar) WaitUntil(m *Mutex, s *Scheduler, deadline time.Time) (timedOut bool) {
	cur := s.currentOrPanic("CondVar.WaitUntil")
	cur.timedOut.Store(false)
	c.enqueue(m, s, deadline)
	return cur.timedOut.Load()
}

// enqueue performs the full Wait/WaitUntil sequence: commit to the
// CondVar's waiter list (and the scheduler's timeout sweep) before
// releasing m, so a concurrent NotifyAll can never be missed between the
// two steps (spec §8 invariant 6); suspend; and, by the time control
// returns here, m has already been handed back by whichever of
// NotifyOne/NotifyAll/expireWaiter woke this fiber.
func (c *CondVar) enqueue(m *Mutex, s *Scheduler, deadline time.Time) {
	cur := s.currentOrPanic("CondVar.Wait")
	cur.waitMutex = m
	cur.condVar = c
	cur.waitClaimed.Store(false)
	cur.setState(StateWaiting)

	c.mu.Lock()
	c.waiting = append(c.waiting, cur)
	c.mu.Unlock()

	// Always registered with the scheduler's deadline sweep, even with no
	// deadline (sorts last, spec §3's "+∞"): that sweep is also what
	// notices a pending Interrupt on a fiber parked here indefinitely.
	cur.deadline = deadline
	s.pushWaiting(cur)

	m.Unlock(s)
	s.switchToDispatcher(cur)
	s.ThisFiber().InterruptionPoint()
}

// expireWaiter is called by the scheduler's waitingQueue sweep (moveReadyTo)
// when a CondVar waiter's deadline has passed or an interrupt targeting it
// is pending. It races with NotifyOne/NotifyAll for the right to wake cur;
// the loser is a no-op. cur has already been unlinked from the scheduler's
// waitingQueue by the caller.
func expireWaiter(cur *Context) {
	if !cur.waitClaimed.CompareAndSwap(false, true) {
		return
	}
	cur.condVar.remove(cur)
	cur.condVar = nil
	if !cur.InterruptRequested() {
		cur.timedOut.Store(true)
	}
	m := cur.waitMutex
	cur.waitMutex = nil
	m.transferIn(cur)
}

func (c *CondVar) remove(ctx *Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiting {
		if w == ctx {
			c.waiting = append(c.waiting[:i], c.waiting[i+1:]...)
			return
		}
	}
}

// NotifyOne wakes at most one waiter, handing it directly to its mutex's
// waiter queue (spec §4.6).
func (c *CondVar) NotifyOne() {
	ctx := c.popLive()
	if ctx == nil {
		return
	}
	c.wake(ctx)
}

// NotifyAll wakes every current waiter.
func (c *CondVar) NotifyAll() {
	for {
		ctx := c.popLive()
		if ctx == nil {
			return
		}
		c.wake(ctx)
	}
}

// popLive removes and returns the oldest waiter, or nil if none remain.
func (c *CondVar) popLive() *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiting) == 0 {
		return nil
	}
	ctx := c.waiting[0]
	c.waiting = c.waiting[1:]
	return ctx
}

func (c *CondVar) wake(ctx *Context) {
	if !ctx.waitClaimed.CompareAndSwap(false, true) {
		return
	}
	if sched := ctx.schedulerOf(); sched != nil {
		sched.removeWaiting(ctx)
	}
	ctx.resetDeadline()
	ctx.condVar = nil
	m := ctx.waitMutex
	ctx.waitMutex = nil
	m.transferIn(ctx)
}
