package fiber

// Future is a single-assignment, single-value handoff between fibers, built
// on Mutex/CondVar the same way Channel is. Where Channel models a stream of
// values, Future models exactly one: the result of a computation run on
// another fiber (or thread), observed once and cached thereafter.
type Future[T any] struct {
	mu   *Mutex
	done *CondVar

	set   bool
	value T
	err   error
}

// NewFuture creates an unset Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{mu: NewMutex(), done: NewCondVar()}
}

// Set assigns the Future's result, waking every fiber blocked in Get. It
// returns ErrFutureAlreadySet if called more than once.
func (f *Future[T]) Set(s *Scheduler, value T, err error) error {
	f.mu.Lock(s)
	defer f.mu.Unlock(s)
	if f.set {
		return ErrFutureAlreadySet
	}
	f.value = value
	f.err = err
	f.set = true
	f.done.NotifyAll()
	return nil
}

// Get blocks the calling fiber until Set has been called, then returns the
// assigned value and error. Calling Get again after the Future is set
// returns the same result immediately, without blocking.
func (f *Future[T]) Get(s *Scheduler) (T, error) {
	f.mu.Lock(s)
	defer f.mu.Unlock(s)
	for !f.set {
		f.done.Wait(f.mu, s)
	}
	return f.value, f.err
}

// Ready reports whether Set has already been called, without blocking.
func (f *Future[T]) Ready(s *Scheduler) bool {
	f.mu.Lock(s)
	defer f.mu.Unlock(s)
	return f.set
}

// Go spawns fn as a new fiber on s (spec §6, "Spawn") and returns a Future
// that resolves to fn's return value once it completes. A panic inside fn
// (other than cancellation) is recovered and surfaced as the Future's
// error, rather than propagated as a Join panicValue, so Go composes with
// ordinary error handling instead of requiring callers to type-assert a
// recovered panic.
func Go[T any](s *Scheduler, fn func() (T, error)) (*Future[T], error) {
	fut := NewFuture[T]()
	_, err := s.Spawn(func() {
		value, err := callRecovering(fn)
		// Set's own Scheduler argument must be the fiber currently running,
		// which is exactly the one Spawn just created.
		_ = fut.Set(s, value, err)
	})
	if err != nil {
		return nil, err
	}
	return fut, nil
}

// callRecovering runs fn, converting a non-cancellation panic into an
// error result instead of letting it unwind past the fiber's entry point
// (where runEntry would otherwise record it as a Join panicValue).
func callRecovering[T any](fn func() (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(cancelSignal); ok {
				panic(r) // let cancellation keep unwinding; it is not an error
			}
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}
