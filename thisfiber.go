package fiber

import "time"

// ThisFiber groups the operations spec §6 describes as free functions in a
// "this_fiber" namespace (mirroring Boost.Fiber's this_fiber::yield() etc,
// bound implicitly to a thread-local scheduler). Go has no portable
// goroutine-local storage — and this package deliberately didn't invent
// one (the retrieval pack's own goroutineid module ships no
// implementation to ground one on) — so every operation here takes its
// owning Scheduler explicitly instead of resolving it from hidden state.
type ThisFiber struct {
	s *Scheduler
}

// ThisFiber scopes self-directed operations to s. Call it from within a
// fiber running on s.
func (s *Scheduler) ThisFiber() ThisFiber { return ThisFiber{s: s} }

// Yield suspends the running fiber and re-offers it as ready.
func (f ThisFiber) Yield() { f.s.Yield() }

// SleepUntil suspends the running fiber until deadline, an explicit wake,
// or an interrupt.
func (f ThisFiber) SleepUntil(deadline time.Time) { f.s.WaitUntil(deadline) }

// IsFiberized reports whether f's Scheduler has a current context. For a
// Scheduler built by NewScheduler this is always true (its main context
// counts as running from the constructing goroutine, see Scheduler.Current),
// so it does not tell a fiber body apart from the goroutine that owns the
// Scheduler.
func (f ThisFiber) IsFiberized() bool { return f.s.Current() != nil }

// InterruptionPoint raises the cancellation panic (spec §7) if an
// Interrupt targeting the running fiber is pending, consuming the request
// so it fires only once. Mutex.Lock and CondVar.Wait call this internally
// each time they resume after blocking.
func (f ThisFiber) InterruptionPoint() {
	cur := f.s.Current()
	if cur == nil || !cur.interruptRequested.CompareAndSwap(true, false) {
		return
	}
	panic(cancelSignal{})
}
