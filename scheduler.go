package fiber

import (
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler owns exactly one OS thread's worth of fiber state: the main
// context (the goroutine that created it), a dedicated dispatcher context,
// the waiting queue, and one installed Algorithm (spec §4.1, §4.4). A
// Scheduler must never be used from more than one goroutine concurrently —
// callers obtain one per thread via NewScheduler and are expected to pin it
// the way the teacher's Loop pins itself to the goroutine that calls Run.
type Scheduler struct {
	algo Algorithm

	// waitingMu guards waiting: the dispatcher's own moveReadyTo sweep and a
	// Mutex/CondVar notify arriving from a different thread both walk and
	// mutate this intrusive list, unlike the per-Algorithm structures (which
	// synchronize themselves, or are single-thread-only by construction).
	waitingMu sync.Mutex
	waiting   *waitingQueue

	main       *Context
	dispatcher *Context
	current    atomic.Pointer[Context]

	clock Clock
	log   Logger

	closed atomic.Bool

	// parkCh is woken by wakeParked when some other thread's Notify/Awakened
	// targets this scheduler specifically (spec §4.4 step 5).
	parkCh chan struct{}

	stackAlloc StackAllocator

	mu      sync.Mutex // guards contexts, below
	contexts map[uint64]*Context
}

// NewScheduler installs algo as this thread's scheduling algorithm and
// returns a Scheduler bound to the calling goroutine, which becomes the
// main context (spec §4.1: "exactly one Context per thread has Role ==
// main, and it is never itself placed in any cross-thread structure").
// NewScheduler must be called from the goroutine that will use the
// returned Scheduler — do not hand it to another goroutine.
func NewScheduler(algo Algorithm, opts ...SchedulerOption) *Scheduler {
	cfg := resolveSchedulerOptions(opts)

	s := &Scheduler{
		algo:       algo,
		waiting:    newWaitingQueue(),
		clock:      cfg.clock,
		log:        cfg.logger,
		parkCh:     make(chan struct{}, 1),
		stackAlloc: cfg.stackAlloc,
		contexts:   make(map[uint64]*Context),
	}

	if b, ok := algo.(binder); ok {
		b.bindScheduler(s)
	}

	s.main = newContext(RoleMain, nil, nil)
	s.main.attach(s)
	s.main.setState(StateRunning)
	s.current.Store(s.main)
	s.contexts[s.main.id] = s.main

	s.dispatcher = newContext(RoleDispatcher, s.runDispatcher, must(cfg.stackAlloc.Allocate(DefaultStackSize)))
	s.dispatcher.stackAlloc = cfg.stackAlloc
	s.dispatcher.attach(s)
	s.contexts[s.dispatcher.id] = s.dispatcher
	go s.bootstrap(s.dispatcher)

	return s
}

func must(buf StackBuffer, err error) StackBuffer {
	if err != nil {
		abortf("stack allocation for dispatcher failed: %v", err)
	}
	return buf
}

// bootstrap is the goroutine backing a non-main Context: it blocks on its
// own resume channel until first switched to, then runs its entry point to
// completion, recovering any cancellation panic, and finally reports exit
// by closing exited (spec §3, §7 interruption-as-panic).
func (s *Scheduler) bootstrap(ctx *Context) {
	<-ctx.resumeCh
	s.runEntry(ctx)
}

func (s *Scheduler) runEntry(ctx *Context) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(cancelSignal); ok {
				ctx.joinResult.cancelled = true
			} else {
				ctx.joinResult.panicValue = r
			}
		}
		ctx.setState(StateTerminated)
		ctx.drainJoiners(s.algo)
		close(ctx.exited)
		if ctx.stackAlloc != nil {
			ctx.stackAlloc.Deallocate(ctx.stack)
		}
		// The dispatcher's own entry (runDispatcher) only returns once the
		// scheduler is closed and drained; at that point there is no
		// dispatcher left to switch back to, and this goroutine is about to
		// exit for good, so it hands off to main with a one-way resume
		// rather than switchTo's symmetric handoff (spec §4.4's shutdown
		// path).
		if ctx.Role() == RoleDispatcher {
			s.main.resumeCh <- struct{}{}
			return
		}
		// A worker that migrated (stolen or picked from a shared queue) is
		// running under another scheduler's dispatcher; hand back to that one.
		owner := ctx.schedulerOf()
		if owner == nil {
			owner = s
		}
		owner.switchToDispatcher(ctx)
	}()
	ctx.entry()
}

// runDispatcher is the dispatcher context's entry point: the loop described
// in spec §4.4 —
//  1. move expired/interrupted waiters to ready,
//  2. pick the next ready context,
//  3. if none, decide whether to park or terminate,
//  4. switch to the picked context,
//  5. on return (the picked context yielded/parked/exited back to us),
//     repeat.
func (s *Scheduler) runDispatcher() {
	for {
		now := s.clock.Now()
		s.waitingMu.Lock()
		s.waiting.moveReadyTo(now, s.algo)
		s.waitingMu.Unlock()

		next := s.algo.PickNext()
		if next == nil {
			s.waitingMu.Lock()
			drained := s.waiting.empty()
			s.waitingMu.Unlock()
			if s.closed.Load() && drained && !s.algo.HasReady() {
				return
			}
			s.park()
			continue
		}

		next.attach(s)
		next.setState(StateRunning)
		s.current.Store(next)
		switchTo(s.dispatcher, next, StateWaiting)
	}
}

// park idles the dispatcher until Notify wakes it, a timed waiter's
// deadline is imminent, or defaultParkInterval elapses — whichever comes
// first (spec §4.4 step 3).
func (s *Scheduler) park() {
	wait := defaultParkInterval
	if dl, ok := s.nextDeadline(); ok {
		if d := dl.Sub(s.clock.Now()); d < wait {
			if d < 0 {
				d = 0
			}
			wait = d
		}
	}
	if p, ok := s.algo.(parker); ok {
		p.Park(wait)
		return
	}
	s.defaultPark(wait)
}

func (s *Scheduler) nextDeadline() (time.Time, bool) {
	s.waitingMu.Lock()
	defer s.waitingMu.Unlock()
	if s.waiting.head == nil {
		return time.Time{}, false
	}
	return s.waiting.head.deadline, hasDeadline(s.waiting.head.deadline)
}

// pushWaiting links ctx into the deadline-sorted waiting list. Safe to
// call from any thread.
func (s *Scheduler) pushWaiting(ctx *Context) {
	s.waitingMu.Lock()
	defer s.waitingMu.Unlock()
	s.waiting.push(ctx)
}

// removeWaiting unlinks ctx from the deadline-sorted waiting list if
// present. Safe to call from any thread.
func (s *Scheduler) removeWaiting(ctx *Context) bool {
	s.waitingMu.Lock()
	defer s.waitingMu.Unlock()
	return s.waiting.remove(ctx)
}

// defaultPark blocks the calling (dispatcher) goroutine until wakeParked is
// called or maxWait elapses. It is the Scheduler-level fallback used by any
// Algorithm that doesn't implement parker, and is also what SharedQueue and
// WorkStealing delegate to once they've recorded themselves as parked.
func (s *Scheduler) defaultPark(maxWait time.Duration) {
	t := time.NewTimer(maxWait)
	defer t.Stop()
	select {
	case <-s.parkCh:
	case <-t.C:
	}
}

// wakeParked wakes this scheduler's dispatcher out of defaultPark, if it is
// currently parked there. Safe to call from any thread.
func (s *Scheduler) wakeParked() {
	select {
	case s.parkCh <- struct{}{}:
	default:
	}
}

// switchToDispatcher hands control back to the dispatcher from a worker (or
// main) context that just yielded, blocked, or finished. s.current must
// reflect the dispatcher for the duration it owns the thread, the same way
// runDispatcher's own switch to a worker stores that worker as current —
// Current()/currentOrPanic() trust this field rather than inspecting the
// calling goroutine, so every handoff site must keep it in sync (this was
// previously only set once, at construction, a bug: see DESIGN.md).
func (s *Scheduler) switchToDispatcher(from *Context) {
	s.current.Store(s.dispatcher)
	switchTo(from, s.dispatcher, from.State())
}

// Spawn creates a new worker fiber running fn and offers it to the
// installed Algorithm (spec §6, "Spawn"). The returned Handle lets the
// caller Join, Detach, or Interrupt it.
func (s *Scheduler) Spawn(fn func(), opts ...SpawnOption) (*Handle, error) {
	if s.closed.Load() {
		return nil, ErrSchedulerClosed
	}
	cfg := resolveSpawnOptions(opts)

	size := cfg.stackSize
	if size <= 0 {
		size = DefaultStackSize
	}
	alloc := cfg.stackAlloc
	if alloc == nil {
		alloc = s.stackAlloc
	}
	buf, err := alloc.Allocate(size)
	if err != nil {
		return nil, &StackAllocError{Size: size, Err: err}
	}

	ctx := newContext(RoleWorker, fn, buf)
	ctx.stackAlloc = alloc
	ctx.attach(s)

	s.mu.Lock()
	s.contexts[ctx.id] = ctx
	s.mu.Unlock()

	go s.bootstrap(ctx)

	ctx.setState(StateReady)
	s.algo.Awakened(ctx)
	s.algo.Notify()

	if s.log != nil {
		s.log.Log(LogEntry{Level: LevelDebug, Category: "spawn", FiberID: ctx.id, Message: "fiber spawned"})
	}

	return &Handle{ctx: ctx, scheduler: s}, nil
}

// Yield suspends the running fiber, re-offers it to the Algorithm as
// ready, and runs the dispatcher loop until this fiber is resumed (spec
// §4.1, "Yield").
func (s *Scheduler) Yield() {
	cur := s.currentOrPanic("Yield")
	cur.setState(StateReady)
	s.algo.Awakened(cur)
	s.switchToDispatcher(cur)
}

// WaitUntil suspends the running fiber until deadline is reached, it is
// woken explicitly, or it is interrupted — whichever comes first (spec §4.2).
// A zero deadline waits without a timeout. Like every other blocking
// Scheduler call, it is itself an interruption point: if the wakeup was
// due to Interrupt rather than the deadline elapsing, WaitUntil panics
// with the cancellation signal instead of returning (spec §7).
func (s *Scheduler) WaitUntil(deadline time.Time) {
	cur := s.currentOrPanic("WaitUntil")
	cur.deadline = deadline
	cur.setState(StateWaiting)
	s.pushWaiting(cur)
	s.switchToDispatcher(cur)
	s.ThisFiber().InterruptionPoint()
}

// Interrupt requests cooperative cancellation of ctx: if it is currently
// waiting, it is woken early; the panic unwinds at the fiber's next
// interruption point (ThisFiber.InterruptionPoint, or the next blocking
// Scheduler call) rather than asynchronously (spec §7).
func (s *Scheduler) Interrupt(ctx *Context) {
	ctx.interruptRequested.Store(true)
}

// wakeWaiter re-offers ctx to its owning scheduler's Algorithm and wakes
// that scheduler if it is parked. Used by Mutex/CondVar to hand control
// directly to a specific waiter, which may live on a different thread
// than the fiber releasing it.
func (s *Scheduler) wakeWaiter(ctx *Context) {
	ctx.setState(StateReady)
	s.algo.Awakened(ctx)
	s.algo.Notify()
	s.wakeParked()
}

// join blocks the calling fiber until target terminates. Caller and target
// must belong to this Scheduler (spec §6, "Join").
func (s *Scheduler) join(target *Context) {
	cur := s.currentOrPanic("Join")
	s.ThisFiber().InterruptionPoint()
	if target.State() == StateTerminated {
		return
	}
	cur.setState(StateWaiting)
	target.pushJoiner(cur)
	s.switchToDispatcher(cur)
	s.ThisFiber().InterruptionPoint()
}

func (s *Scheduler) currentOrPanic(op string) *Context {
	cur := s.current.Load()
	if cur == nil {
		abortf("%s called with no running fiber on this scheduler", op)
	}
	return cur
}

// Current returns the Context currently running on this scheduler's
// thread. From the goroutine that called NewScheduler, this is s.main even
// before Run is ever called — the thread itself becomes the main fiber the
// moment a scheduling algorithm is installed (spec §6,
// "use_scheduling_algorithm...establishes the thread's scheduler"). Current
// only returns nil for a Scheduler value that was never properly
// constructed via NewScheduler, which Mutex/Channel/Future/Handle guard
// against defensively as their "non-fiberized caller" branch.
func (s *Scheduler) Current() *Context { return s.current.Load() }

// Close marks this scheduler as draining: the dispatcher terminates once
// the ready and waiting queues are both empty, instead of parking forever
// (spec §4.4 step 3 "or shut down").
func (s *Scheduler) Close() { s.closed.Store(true) }

// Run drives the dispatcher loop on the calling (main) goroutine until the
// scheduler is Closed and drained. It must be called from the same
// goroutine that constructed the Scheduler.
func (s *Scheduler) Run() {
	s.current.Store(s.dispatcher)
	switchTo(s.main, s.dispatcher, StateWaiting)
	s.current.Store(s.main)
}
