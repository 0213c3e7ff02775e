package fiber

// RoundRobin is the per-thread policy of spec §4.3(1): a local FIFO, no
// cross-thread sharing, no locks. It is the simplest conforming Algorithm
// and the one used when a thread does not participate in any pool.
type RoundRobin struct {
	ready *readyQueue

	mainCtx       *Context
	dispatcherCtx *Context
}

// NewRoundRobin creates a fresh per-thread round-robin scheduling
// algorithm. Each Scheduler needs its own instance — RoundRobin holds no
// state that may be shared across threads.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{ready: newReadyQueue()}
}

func (a *RoundRobin) Awakened(ctx *Context) {
	switch ctx.Role() {
	case RoleMain:
		a.mainCtx = ctx
	case RoleDispatcher:
		a.dispatcherCtx = ctx
	default:
		a.ready.push(ctx)
	}
}

func (a *RoundRobin) PickNext() *Context {
	if ctx := a.ready.pop(); ctx != nil {
		return ctx
	}
	if a.mainCtx != nil {
		ctx := a.mainCtx
		a.mainCtx = nil
		return ctx
	}
	if a.dispatcherCtx != nil {
		ctx := a.dispatcherCtx
		a.dispatcherCtx = nil
		return ctx
	}
	return nil
}

func (a *RoundRobin) HasReady() bool {
	return !a.ready.empty() || a.mainCtx != nil
}

// Notify is a no-op: RoundRobin never shares state across threads, so
// nothing else can ever need to wake it (spec §4.3).
func (a *RoundRobin) Notify() {}
