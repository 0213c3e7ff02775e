package fiber

import "time"

// Algorithm is the pluggable scheduling policy contract (spec §4.3, §6
// "Algorithm interface"). A Scheduler delegates all placement and
// selection decisions to an installed Algorithm; this package ships three
// reference implementations (RoundRobin, SharedQueue, WorkStealing) and
// custom policies need only implement this interface.
type Algorithm interface {
	// Awakened takes custody of ctx, which has just become ready (spawned,
	// woken, or re-offered after a yield). The algorithm must accept any
	// Role: main/dispatcher contexts are typically stashed in
	// implementation-private per-instance slots and never placed in any
	// structure a different thread could drain from, since only the
	// owning scheduler may ever resume them (spec §4.1, §4.3).
	Awakened(ctx *Context)

	// PickNext returns the context this thread's scheduler should run
	// next, or nil if none is currently available.
	PickNext() *Context

	// HasReady is a best-effort predicate: it must never report "false"
	// while a worker has been Awakened and not yet returned by PickNext,
	// but need not be linearizable with concurrent mutation otherwise
	// (spec §4.3).
	HasReady() bool

	// Notify wakes this algorithm's thread if it is parked. Only
	// meaningful for policies that share state across threads (spec
	// §4.3's work-stealing case); single-threaded policies may no-op.
	Notify()
}

// parker is an optional capability an Algorithm may implement to control
// how its thread idles (spec §4.4 step 5, "the algorithm chooses how:
// spin, sleep on a condition, block on a notify primitive"). maxWait
// bounds how long Park may block even with no Notify — the dispatcher
// always needs to wake up in time to re-sweep the waiting queue for timed
// waits. An Algorithm that does not implement parker gets the Scheduler's
// own default bounded sleep, which still ends early when
// Scheduler.wakeParked signals the Scheduler's own park channel.
type parker interface {
	Park(maxWait time.Duration)
}

// binder is an optional capability letting a cross-thread Algorithm (e.g.
// SharedQueue, WorkStealing) register this thread's Scheduler so that
// Notify (called from another thread) can wake this one specifically, via
// Scheduler.wakeParked. Installed automatically by NewScheduler.
type binder interface {
	bindScheduler(s *Scheduler)
}

// defaultParkInterval bounds the Scheduler's own default park when the
// installed Algorithm has no opinion (RoundRobin) and no timed wait is
// pending, so a dispatcher always periodically reconsiders has-ready /
// shutdown state rather than sleeping forever.
const defaultParkInterval = 5 * time.Millisecond
