package fiber

import "time"

// waitingQueue is the intrusive list of Contexts in StateWaiting, kept in
// ascending deadline order (spec §3, §4.2), translated from
// original_source/src/detail/waiting_queue.cpp. push is a linear walk that
// stops at the first entry whose deadline is later than the new entry's, so
// entries with equal deadlines keep insertion order; moveReadyTo sweeps the whole list with a pointer-to-pointer so
// each unlink is O(1) and no allocation is ever needed.
type waitingQueue struct {
	head *Context
}

func newWaitingQueue() *waitingQueue { return &waitingQueue{} }

// push inserts ctx preserving ascending order of ctx.deadline. A zero
// deadline ("+∞", spec §3) sorts last, matching Boost.Fiber's use of the
// maximum time_point for "no timeout".
func (q *waitingQueue) push(ctx *Context) {
	if ctx.next != nil {
		abortf("waitingQueue.push: context %d already linked", ctx.id)
	}
	f := &q.head
	for *f != nil {
		if before(ctx.deadline, (*f).deadline) {
			break
		}
		f = &(*f).next
	}
	ctx.next = *f
	*f = ctx
}

// before reports whether a's deadline sorts strictly before b's, treating
// the zero value (no deadline) as "+∞".
func before(a, b time.Time) bool {
	aInf, bInf := !hasDeadline(a), !hasDeadline(b)
	switch {
	case aInf && bInf:
		return false
	case aInf:
		return false
	case bInf:
		return true
	default:
		return a.Before(b)
	}
}

// moveReadyTo walks the list once; every entry whose deadline has passed
// (<=now) or whose interrupt has been requested is unlinked, its deadline
// reset, marked ready, and handed to algo via awakened (spec §4.2).
func (q *waitingQueue) moveReadyTo(now time.Time, algo Algorithm) {
	fp := &q.head
	for *fp != nil {
		f := *fp
		expired := hasDeadline(f.deadline) && !f.deadline.After(now)
		if expired || f.InterruptRequested() {
			*fp = f.next
			f.next = nil
			switch {
			case f.condVar != nil:
				expireWaiter(f)
			case f.waitMutex != nil:
				expireMutexWaiter(f, algo)
			default:
				f.resetDeadline()
				f.setState(StateReady)
				algo.Awakened(f)
			}
			continue
		}
		fp = &f.next
	}
}

// remove unlinks ctx from the list if present, returning whether it was
// found. Used by external wakeups (notify, unlock) that target a specific
// waiter rather than waiting for its deadline or an interrupt.
func (q *waitingQueue) remove(ctx *Context) bool {
	fp := &q.head
	for *fp != nil {
		if *fp == ctx {
			*fp = ctx.next
			ctx.next = nil
			return true
		}
		fp = &(*fp).next
	}
	return false
}

func (q *waitingQueue) empty() bool { return q.head == nil }
