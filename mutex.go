package fiber

import (
	"sync"
	"time"
)

// Mutex is the fiber-aware mutual-exclusion lock of spec §4.5, translated
// from original_source/src/mutex.cpp. Ownership on unlock transfers
// directly to the next live waiter — state never passes through
// "unlocked" in between — which is what rules out barging: a fiber that
// merely calls Lock cannot jump the queue ahead of whoever was already
// waiting.
//
// Go has no implicit per-goroutine scheduler the way Boost.Fiber's
// thread-local scheduler::instance() does, so every operation takes the
// calling fiber's Scheduler explicitly, matching ThisFiber's approach
// (see DESIGN.md, Open Question 1 on context_switch).
type Mutex struct {
	checked bool

	mu      sync.Mutex
	locked  bool
	owner   *Context
	waiting []*Context // FIFO; a plain slice, not the scheduler's intrusive
	// queues, because a waiter here may simultaneously need to stay linked
	// into a CondVar's own waiting list or the scheduler's deadline-sorted
	// waitingQueue via ctx.next — original_source/src/mutex.cpp keeps its
	// own waiting_ deque for exactly this reason.
}

// NewMutex creates an unchecked Mutex: Unlock by a non-owner is undefined
// behaviour-free (silently succeeds), matching a release build of
// Boost.Fiber's mutex(false).
func NewMutex() *Mutex { return &Mutex{} }

// NewCheckedMutex creates a Mutex that aborts the process if Unlock is
// called by any fiber other than the current owner (spec §4.5, "checked
// flag"), matching Boost.Fiber's mutex(true).
func NewCheckedMutex() *Mutex { return &Mutex{checked: true} }

// nonFiberizedPumpInterval bounds how long Lock sleeps between retries
// when called from outside any fiber — the closest equivalent this
// package has to Boost.Fiber's scheduler::instance().run() pump for a
// non-fiberized caller, since there is no foreign scheduler for such a
// caller to drive.
const nonFiberizedPumpInterval = time.Millisecond

// Lock blocks the calling fiber (running on s) until the mutex is
// acquired. If called from outside any fiber, it instead busy-waits,
// mirroring original_source/src/mutex.cpp's "not fiberized" branch.
//
// A fiberized caller that must wait suspends exactly once: Unlock's
// handoff (or CondVar's transferIn) sets m.owner to the woken waiter
// directly and never clears m.locked in between, so there is no "unlocked"
// window to re-contend for — by the time switchToDispatcher returns here,
// this fiber already owns the mutex, and Lock simply returns rather than
// re-checking m.locked (which would still read true and loop forever).
//
// A waiter is also registered with the scheduler's own waitingQueue (spec
// §5, "interruption of a fiber currently in waiting unlinks it and
// re-routes it through the ready path"): without it, Interrupt on a fiber
// blocked here would be a silent no-op until Unlock happened to reach it
// in FIFO order, at which point ownership would already have transferred
// before InterruptionPoint unwound below — leaving the mutex permanently
// locked with no owner left to release it. waitClaimed arbitrates the
// race between that queue's sweep and Unlock's own handoff loop, same as
// CondVar's use of the field.
func (m *Mutex) Lock(s *Scheduler) {
	cur := s.Current()
	if cur == nil {
		m.lockNonFiberized()
		return
	}

	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.owner = cur
		m.mu.Unlock()
		return
	}
	cur.setState(StateWaiting)
	cur.waitMutex = m
	cur.waitClaimed.Store(false)
	cur.resetDeadline()
	m.waiting = append(m.waiting, cur)
	m.mu.Unlock()

	s.pushWaiting(cur)
	s.switchToDispatcher(cur)
	s.ThisFiber().InterruptionPoint()
}

// lockNonFiberized busy-waits for the mutex from outside any fiber, the
// closest equivalent this package has to Boost.Fiber's
// scheduler::instance().run() pump for a non-fiberized caller, since there
// is no foreign scheduler for such a caller to drive.
func (m *Mutex) lockNonFiberized() {
	for {
		m.mu.Lock()
		if !m.locked {
			m.locked = true
			m.owner = nil
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		time.Sleep(nonFiberizedPumpInterval)
	}
}

// TryLock acquires the mutex without suspending, returning false if it is
// already held.
func (m *Mutex) TryLock(s *Scheduler) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	m.owner = s.Current()
	return true
}

// Unlock releases the mutex, handing it off directly to the next live
// waiter if one exists (spec §4.5). If checked, a non-owner caller aborts
// the process rather than corrupting state.
//
// Waiters already terminated or already claimed by an interrupt-driven
// expiry (waitingQueue's sweep, via expireMutexWaiter) are skipped; a
// waiter this call reaches first but whose interrupt is already pending is
// rerouted through ready itself rather than handed ownership, so a
// cancelling fiber never ends up owning the mutex it is about to unwind
// past (spec §5).
func (m *Mutex) Unlock(s *Scheduler) {
	cur := s.Current()
	m.mu.Lock()
	if m.checked && m.owner != cur {
		m.mu.Unlock()
		abortf("mutex: unlock called by %v, owned by %v", cur, m.owner)
	}

	var next *Context
	for len(m.waiting) > 0 {
		candidate := m.waiting[0]
		m.waiting = m.waiting[1:]
		if candidate.State() == StateTerminated {
			continue
		}
		if !candidate.waitClaimed.CompareAndSwap(false, true) {
			continue // lost the claim race to expireMutexWaiter
		}
		if candidate.InterruptRequested() {
			candidate.waitMutex = nil
			candidate.resetDeadline()
			if sched := candidate.schedulerOf(); sched != nil {
				sched.removeWaiting(candidate)
				sched.wakeWaiter(candidate)
			}
			continue
		}
		next = candidate
		break
	}

	if next != nil {
		next.waitMutex = nil
		if sched := next.schedulerOf(); sched != nil {
			sched.removeWaiting(next)
		}
		m.owner = next
		m.mu.Unlock()
		sched := next.schedulerOf()
		if sched == nil {
			sched = s
		}
		sched.wakeWaiter(next)
		return
	}

	m.locked = false
	m.owner = nil
	m.mu.Unlock()
}

// removeWaiter unlinks ctx from m's private waiting list if still present.
// Used by expireMutexWaiter, whose claim on ctx may race Unlock's own scan.
func (m *Mutex) removeWaiter(ctx *Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.waiting {
		if w == ctx {
			m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// expireMutexWaiter is called by the scheduler's waitingQueue sweep
// (queue_waiting.go's moveReadyTo) when a fiber blocked in Mutex.Lock has
// been interrupted. It races Unlock's own handoff loop above for the right
// to resolve cur via waitClaimed; the loser is a no-op. Unlike a CondVar
// wait, an interrupted Lock waiter never receives ownership — it is simply
// unlinked from m.waiting and rerouted through ready, so Lock's own
// InterruptionPoint call unwinds before the caller ever believes it holds
// the lock (spec §5).
func expireMutexWaiter(cur *Context, algo Algorithm) {
	if !cur.waitClaimed.CompareAndSwap(false, true) {
		return
	}
	m := cur.waitMutex
	cur.waitMutex = nil
	m.removeWaiter(cur)
	cur.resetDeadline()
	cur.setState(StateReady)
	algo.Awakened(cur)
}

// transferIn is CondVar's hook for handing a woken waiter the mutex
// directly rather than making it re-contend from scratch (spec §4.6,
// "may be immediately placed on the mutex's waiter queue to avoid a
// thundering herd").
func (m *Mutex) transferIn(ctx *Context) {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.owner = ctx
		m.mu.Unlock()
		if sched := ctx.schedulerOf(); sched != nil {
			sched.wakeWaiter(ctx)
		}
		return
	}
	m.waiting = append(m.waiting, ctx)
	m.mu.Unlock()
}
