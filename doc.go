// Package fiber provides a cooperative, user-space scheduling core: many
// lightweight fibers multiplexed onto a small number of OS threads, each
// thread running its own [Scheduler] with a pluggable scheduling
// [Algorithm].
//
// # Architecture
//
// Each OS thread that wants to run fibers calls [NewScheduler] once, with
// one of three installed algorithms:
//   - [RoundRobin]: a per-thread-only FIFO, no cross-thread coordination.
//   - [NewSharedQueuePool]/[SharedQueuePool.Join]: a single shared FIFO that
//     every participating thread pulls from, for simple work-sharing.
//   - [NewWorkStealingPool]/[WorkStealingPool.Join]: a per-thread deque with
//     randomized-probe stealing, for load-balancing under uneven work.
//
// A [Scheduler] runs a dedicated dispatcher fiber that repeatedly moves
// expired/interrupted waiters to ready, asks the Algorithm for the next
// ready fiber, and switches to it (see [Scheduler.Run]). [Scheduler.Spawn]
// creates new fibers; [Scheduler.Yield], [Scheduler.WaitUntil], and
// [Scheduler.Interrupt] suspend, time-delay, and cooperatively cancel them.
//
// [Mutex] and [CondVar] are fiber-aware synchronization primitives safe to
// share across Schedulers on different threads: blocking on either
// suspends only the calling fiber, not its OS thread.
//
// # Convenience layer
//
// [Channel] and [Future] are built entirely on the public Mutex/CondVar/
// Scheduler API — nothing in this package's internals is special-cased for
// them. [Go] spawns a fiber and returns a [Future] for its result.
//
// # Logging
//
// [Logger] is the structured-logging seam installed with [WithLogger]; a
// Scheduler logs each spawn at debug level and nothing else. [NopLogger]
// discards everything;
// [DefaultLogger] writes plain text; [RateLimitedLogger] wraps another
// Logger with a token-bucket ceiling per log category; [LogifaceLogger]
// adapts a github.com/joeycumines/logiface pipeline for structured sinks.
//
// # Thread safety
//
// A *Scheduler must only ever be driven (Spawn/Yield/WaitUntil/Run) from
// the single goroutine that created it via NewScheduler. Mutex, CondVar,
// and the shared-queue/work-stealing pool types are explicitly designed
// for cross-thread use; everything else in this package is not.
package fiber
