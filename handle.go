package fiber

import "sync/atomic"

// Handle is the external reference returned by Spawn (spec §6, "Spawn ...
// returns a handle supporting join, detach, interrupt"). A Handle may be
// joined or detached, but not both; Join may only be called from the
// places its own doc lists.
type Handle struct {
	ctx       *Context
	scheduler *Scheduler

	joinedOrDetached atomicOnce
}

// ID returns the spawned fiber's identity.
func (h *Handle) ID() uint64 { return h.ctx.ID() }

// Join blocks the calling fiber until the target completes, returning any
// panic value it raised (re-panicking is the caller's choice, not forced
// here) and whether it was cancelled instead of completing normally. Join
// must be called either from a fiber running on the same Scheduler that
// owns the target, or from the goroutine that constructed that Scheduler
// (before its first Run, or after a Run has returned) — never from some
// other, unrelated goroutine while Run is active elsewhere, since this
// package keeps no goroutine-local state to tell that case apart from a
// legitimate in-fiber caller (see DESIGN.md, Open Question 6). A fiber may
// not Join itself (spec §6, ErrSelfJoin).
func (h *Handle) Join() (panicValue any, cancelled bool, err error) {
	if !h.joinedOrDetached.claim() {
		return nil, false, ErrAlreadyJoinedOrDetached
	}
	cur := h.scheduler.current.Load()
	if cur == h.ctx {
		return nil, false, ErrSelfJoin
	}
	if cur != nil {
		h.scheduler.join(h.ctx)
	} else {
		<-h.ctx.exited
	}
	return h.ctx.joinResult.panicValue, h.ctx.joinResult.cancelled, nil
}

// Detach releases this Handle's claim on the fiber without waiting for it;
// the fiber runs to completion independently and its resources are
// reclaimed when its goroutine returns.
func (h *Handle) Detach() error {
	if !h.joinedOrDetached.claim() {
		return ErrAlreadyJoinedOrDetached
	}
	return nil
}

// Interrupt requests cooperative cancellation of the target fiber (spec
// §7). It may be called any number of times and from any goroutine.
func (h *Handle) Interrupt() {
	h.scheduler.Interrupt(h.ctx)
}

// atomicOnce is a tiny CAS-based "claim exactly once" latch, used so
// Join/Detach on a Handle are mutually exclusive without pulling in
// sync.Once's fixed func-running semantics.
type atomicOnce struct{ done atomic.Bool }

func (o *atomicOnce) claim() bool {
	return o.done.CompareAndSwap(false, true)
}
