package fiber

import (
	"sync/atomic"
	"time"
)

// Role identifies the kind of fiber a Context represents (spec §3).
type Role int8

const (
	// RoleMain wraps the thread's original goroutine — the one that called
	// NewScheduler. Exactly one per scheduler.
	RoleMain Role = iota
	// RoleDispatcher runs the scheduler's dispatch loop (spec §4.4).
	// Exactly one per scheduler.
	RoleDispatcher
	// RoleWorker is an ordinary spawned fiber. Zero or more per scheduler.
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleMain:
		return "main"
	case RoleDispatcher:
		return "dispatcher"
	case RoleWorker:
		return "worker"
	default:
		return "role(?)"
	}
}

// State is a Context's lifecycle state (spec §3).
type State int32

const (
	StateReady State = iota
	StateRunning
	StateWaiting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateTerminated:
		return "terminated"
	default:
		return "state(?)"
	}
}

// Context is the per-fiber control block described in spec §3. Queue
// linkage (next) and resumption are package-private: only the scheduler
// machinery in this package may walk queues or call resume/suspend, which
// is what lets spec §4.1's "only the owning scheduler resumes a context"
// invariant hold by construction rather than by convention.
//
// Go has no portable, assembly-free primitive to swap machine stacks, so
// this package realizes spec §1's external context_switch(from, to) with a
// dedicated goroutine per Context parked on a capacity-1 resume channel:
// resume() sends on the callee's channel then blocks receiving on the
// caller's own channel, so exactly one goroutine per scheduler is ever
// unblocked — see DESIGN.md, "Open Question: context_switch".
type Context struct {
	id   uint64
	role Role

	state atomic.Int32 // State

	stack      StackBuffer
	stackAlloc StackAllocator // nil only for main, which owns no separately-reclaimed stack buffer
	entry      EntryFunc

	// next is the intrusive link used by exactly one queue at a time:
	// a scheduler's ready queue, a scheduler's waiting queue, or another
	// Context's joiners list. Mutex and CondVar keep their waiters in plain
	// slices and do not use it. It is nil when unlinked (spec §3 invariant).
	next *Context

	deadline time.Time // zero == "+∞", reset whenever the fiber becomes ready

	interruptRequested atomic.Bool
	cancelling          atomic.Bool // true once a cancellation unwind has been raised

	scheduler atomic.Pointer[Scheduler] // authoritative owner; only it may resume this Context

	// joiners is the intrusive singly-linked list of Contexts blocked in
	// Join(this), woken (moved to ready) when this Context terminates.
	joiners *Context

	// waitMutex is the Mutex a CondVar.Wait call is blocked re-acquiring,
	// set for the duration of the wait so notifyOne/notifyAll know where to
	// hand the waiter off to (spec §4.6).
	waitMutex *Mutex

	// condVar is non-nil while this Context is linked into both a CondVar's
	// own waiter list and the scheduler's waitingQueue, so moveReadyTo knows
	// to route an expiry/interrupt through expireWaiter (mutex handoff)
	// instead of awakening it directly.
	condVar *CondVar

	// waitClaimed arbitrates between a CondVar wait's two independent wake
	// paths when a deadline is set: the scheduler's waitingQueue timeout
	// sweep, and CondVar.notifyOne/notifyAll. Exactly one wins the race;
	// the loser is a no-op (spec §8 invariant 6, lost-wakeup freedom).
	waitClaimed atomic.Bool
	timedOut    atomic.Bool

	resumeCh chan struct{} // cap 1: the handoff channel backing resume/suspend
	exited   chan struct{} // closed once the backing goroutine has returned

	joinResult joinOutcome
}

// EntryFunc is the function a worker Context first executes (spec §3).
type EntryFunc func()

// joinOutcome records how a fiber finished, surfaced to its joiners.
type joinOutcome struct {
	panicValue any
	cancelled  bool
}

var contextIDCounter atomic.Uint64

func newContext(role Role, entry EntryFunc, stack StackBuffer) *Context {
	c := &Context{
		id:       contextIDCounter.Add(1),
		role:     role,
		entry:    entry,
		stack:    stack,
		resumeCh: make(chan struct{}, 1),
		exited:   make(chan struct{}),
	}
	c.state.Store(int32(StateReady))
	return c
}

// ID returns the Context's stable, opaque identifier.
func (c *Context) ID() uint64 { return c.id }

// Role returns whether this is the main, dispatcher, or a worker context.
func (c *Context) Role() Role { return c.role }

// State returns the current lifecycle state.
func (c *Context) State() State { return State(c.state.Load()) }

func (c *Context) setState(s State) { c.state.Store(int32(s)) }

// Deadline returns the wait deadline, and whether one is set at all (the
// zero value means "wait without timeout", spec §3).
func (c *Context) Deadline() (time.Time, bool) {
	return c.deadline, hasDeadline(c.deadline)
}

func (c *Context) resetDeadline() { c.deadline = time.Time{} }

// InterruptRequested reports whether Interrupt has been called and not yet
// consumed at an interruption point (spec §3).
func (c *Context) InterruptRequested() bool { return c.interruptRequested.Load() }

// schedulerOf returns the Context's current owning Scheduler, or nil if
// detached (mid-migration).
func (c *Context) schedulerOf() *Scheduler { return c.scheduler.Load() }

// detach clears the owning scheduler pointer, the first half of a
// migration (spec §4.1, §5: "clearing the old owner, then a single
// awakened call into the new owner").
func (c *Context) detach() { c.scheduler.Store(nil) }

// attach sets the owning scheduler; the second half of a migration, or the
// initial assignment at spawn.
func (c *Context) attach(s *Scheduler) { c.scheduler.Store(s) }

// pushJoiner links waiter onto c's joiners list. Only called while both c
// and waiter belong to the same scheduler and that scheduler's fiber
// currently holds the run token, so no lock is needed (spec §4.1's
// single-runner-per-thread invariant).
func (c *Context) pushJoiner(waiter *Context) {
	if waiter.next != nil {
		abortf("pushJoiner: waiter %d already linked", waiter.id)
	}
	waiter.next = c.joiners
	c.joiners = waiter
}

// drainJoiners unlinks every waiting joiner and hands each to algo as
// newly ready, called once when c terminates.
func (c *Context) drainJoiners(algo Algorithm) {
	for j := c.joiners; j != nil; {
		next := j.next
		j.next = nil
		j.setState(StateReady)
		algo.Awakened(j)
		j = next
	}
	c.joiners = nil
}

// switchTo performs the context_switch handoff described in the package
// doc: it marks `from` with its post-switch state, wakes `to`'s goroutine,
// and blocks the calling goroutine (which backs `from`) until `from` is
// itself resumed again. It must only be called by the goroutine currently
// backing `from`.
func switchTo(from, to *Context, fromNextState State) {
	from.setState(fromNextState)
	to.resumeCh <- struct{}{}
	<-from.resumeCh
	from.setState(StateRunning)
}

