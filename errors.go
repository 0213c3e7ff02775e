package fiber

import (
	"errors"
	"fmt"
)

// Sentinel errors returned from the public API (spec §7, "Resource
// exhaustion" and the return-value-only propagation policy).
var (
	// ErrSchedulerClosed is returned by Spawn and friends once the owning
	// Scheduler has shut down.
	ErrSchedulerClosed = errors.New("fiber: scheduler is closed")

	// ErrSelfJoin is a programmer error: a fiber may not join itself. This
	// deadlocks trivially, so it is rejected eagerly (spec §7, "joining
	// oneself" is listed among programmer errors that terminate the
	// process).
	ErrSelfJoin = errors.New("fiber: a fiber cannot join itself")

	// ErrAlreadyJoinedOrDetached is returned when Join/Detach is called more
	// than once, or both, on the same Handle.
	ErrAlreadyJoinedOrDetached = errors.New("fiber: handle already joined or detached")

	// ErrChannelClosed is returned by Channel.Send when the channel has been
	// Closed.
	ErrChannelClosed = errors.New("fiber: send on closed channel")

	// ErrFutureAlreadySet is returned by Future.Set if called more than once.
	ErrFutureAlreadySet = errors.New("fiber: future already set")
)

// StackAllocError wraps a stack allocator failure surfaced to the caller of
// Spawn, per spec §7 ("Resource exhaustion...surfaces to the caller of spawn
// as a failure result; no partial state is left behind").
type StackAllocError struct {
	Size int
	Err  error
}

func (e *StackAllocError) Error() string {
	return fmt.Sprintf("fiber: stack allocation of %d bytes failed: %v", e.Size, e.Err)
}

func (e *StackAllocError) Unwrap() error { return e.Err }

// PanicError wraps a recovered non-cancellation panic value, surfaced by
// Go/Future as an ordinary error instead of an unwinding panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("fiber: recovered panic: %v", e.Value)
}

// Cancelled is the sentinel a fiber's entry function observes (via panic
// carrying this error, recovered at the context boundary) when it is
// unwound due to interruption at an interruption point. Cancellation is
// normal control flow, not an error condition (spec §7); it is modeled as a
// distinguished panic value purely so that deferred scoped releases run
// during the unwind, the same way a Go goroutine exit via panic/recover
// runs deferred cleanup.
var Cancelled = errors.New("fiber: fiber was interrupted")

// cancelSignal is the concrete panic payload used to unwind an interrupted
// fiber. It lets recover() sites distinguish cancellation from a genuine
// application panic without losing the original Cancelled identity.
type cancelSignal struct{}

func (cancelSignal) Error() string { return Cancelled.Error() }

func (cancelSignal) Is(target error) bool { return target == Cancelled }

// abortf terminates the process for a detected programmer error (spec §7:
// "These terminate the process — they are bugs, not recoverable
// conditions"), mirroring original_source/src/mutex.cpp's std::abort() on
// checked-unlock misuse.
func abortf(format string, args ...any) {
	panic(fmt.Sprintf("fiber: programmer error: "+format, args...))
}
