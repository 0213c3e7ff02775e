package fiber

// schedulerOptions holds the resolved configuration for a single Scheduler,
// built up by applying every SchedulerOption in order. Mirrors the
// teacher's loopOptions/LoopOption pattern (eventloop/options.go).
type schedulerOptions struct {
	clock      Clock
	logger     Logger
	stackAlloc StackAllocator
}

// SchedulerOption configures a Scheduler at construction time.
type SchedulerOption interface {
	applyScheduler(*schedulerOptions) error
}

type schedulerOptionFunc func(*schedulerOptions) error

func (f schedulerOptionFunc) applyScheduler(o *schedulerOptions) error { return f(o) }

// WithClock overrides the Clock used for deadlines and the dispatcher's own
// park bound. Defaults to SystemClock; tests typically pass a *FakeClock.
func WithClock(c Clock) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) error {
		o.clock = c
		return nil
	})
}

// WithLogger installs a Logger that receives structured diagnostics for
// this scheduler: one debug entry per Spawn. Steals and park/wake cycles
// are not logged. Defaults to a no-op logger.
func WithLogger(l Logger) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) error {
		o.logger = l
		return nil
	})
}

// WithStackAllocator overrides the StackAllocator used for the dispatcher
// context and any Spawn call that doesn't specify its own via
// WithSpawnStackAllocator. Defaults to HeapAllocator.
func WithStackAllocator(a StackAllocator) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) error {
		o.stackAlloc = a
		return nil
	})
}

func resolveSchedulerOptions(opts []SchedulerOption) *schedulerOptions {
	o := &schedulerOptions{
		clock:      SystemClock,
		logger:     NopLogger,
		stackAlloc: HeapAllocator,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(o); err != nil {
			abortf("invalid scheduler option: %v", err)
		}
	}
	return o
}

// spawnOptions holds the resolved configuration for a single Spawn call.
type spawnOptions struct {
	stackSize  int
	stackAlloc StackAllocator
}

// SpawnOption configures an individual Spawn call.
type SpawnOption interface {
	applySpawn(*spawnOptions) error
}

type spawnOptionFunc func(*spawnOptions) error

func (f spawnOptionFunc) applySpawn(o *spawnOptions) error { return f(o) }

// WithStackSize requests a minimum stack size for this fiber, in bytes.
func WithStackSize(n int) SpawnOption {
	return spawnOptionFunc(func(o *spawnOptions) error {
		o.stackSize = n
		return nil
	})
}

// WithSpawnStackAllocator overrides the StackAllocator for this Spawn call
// only, taking precedence over the Scheduler's own.
func WithSpawnStackAllocator(a StackAllocator) SpawnOption {
	return spawnOptionFunc(func(o *spawnOptions) error {
		o.stackAlloc = a
		return nil
	})
}

func resolveSpawnOptions(opts []SpawnOption) *spawnOptions {
	o := &spawnOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applySpawn(o); err != nil {
			abortf("invalid spawn option: %v", err)
		}
	}
	return o
}
