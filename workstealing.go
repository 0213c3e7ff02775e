package fiber

import (
	"math/rand"
	"sync"
	"time"
)

// WorkStealingPool is the cross-thread membership registry backing spec
// §4.3(3): each participating thread owns a local deque; an idle thread
// probes siblings in randomized order (to avoid convoys, per spec) and
// steals from the top of a victim's deque. Grounded on
// other_examples/cef72a7a_go-foundations-workerpool's
// `workStealingWorker`/`WorkStealingDeque` for the own-deque-LIFO-pop,
// sibling-deque-FIFO-steal split; that example probes victims in
// deterministic round-robin order, so the randomized-probe order here
// (`shuffled`, using stdlib `math/rand`) is this package's own addition to
// satisfy spec §4.3's anti-convoy requirement, not something carried over
// from the example.
type WorkStealingPool struct {
	mu      sync.Mutex
	members []*workStealing
	parked  map[*Scheduler]struct{}
}

// NewWorkStealingPool creates an empty work-stealing pool. Call Join once
// per participating thread.
func NewWorkStealingPool() *WorkStealingPool {
	return &WorkStealingPool{parked: make(map[*Scheduler]struct{})}
}

// Join returns a new per-thread Algorithm participating in this pool.
func (p *WorkStealingPool) Join() Algorithm {
	a := &workStealing{pool: p}
	p.mu.Lock()
	p.members = append(p.members, a)
	p.mu.Unlock()
	return a
}

func (p *WorkStealingPool) leave(a *workStealing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, m := range p.members {
		if m == a {
			p.members = append(p.members[:i], p.members[i+1:]...)
			break
		}
	}
}

// siblings returns a snapshot of every member except self.
func (p *WorkStealingPool) siblings(self *workStealing) []*workStealing {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*workStealing, 0, len(p.members))
	for _, m := range p.members {
		if m != self {
			out = append(out, m)
		}
	}
	return out
}

// wakeAny wakes one parked peer so it can contend for newly-available
// work — spec §4.3: "spawns and releases on any thread wake any parked
// peer."
func (p *WorkStealingPool) wakeAny() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for s := range p.parked {
		delete(p.parked, s)
		s.wakeParked()
		return
	}
}

// workStealing is the per-thread Algorithm adapter joining a
// WorkStealingPool. Its deque is guarded by its own mutex: the owner
// thread pushes/pops the bottom (tail), and sibling threads steal from the
// top (head). A plain mutex supplies the release-on-push/acquire-on-steal
// ordering spec §9 calls for, without separate atomics (DESIGN.md, Open
// Question 4).
type workStealing struct {
	pool *WorkStealingPool

	deqMu sync.Mutex
	deque []*Context

	mainCtx       *Context
	dispatcherCtx *Context

	self *Scheduler
}

func (a *workStealing) bindScheduler(s *Scheduler) { a.self = s }

func (a *workStealing) Awakened(ctx *Context) {
	switch ctx.Role() {
	case RoleMain:
		a.mainCtx = ctx
	case RoleDispatcher:
		a.dispatcherCtx = ctx
	default:
		a.deqMu.Lock()
		a.deque = append(a.deque, ctx) // push bottom
		a.deqMu.Unlock()
		a.pool.wakeAny()
	}
}

// popBottom removes and returns the owner's own most-recently-pushed
// context, or nil if the local deque is empty.
func (a *workStealing) popBottom() *Context {
	a.deqMu.Lock()
	defer a.deqMu.Unlock()
	n := len(a.deque)
	if n == 0 {
		return nil
	}
	ctx := a.deque[n-1]
	a.deque[n-1] = nil
	a.deque = a.deque[:n-1]
	return ctx
}

// stealTop removes and returns the oldest context from this victim's
// deque, for a sibling to run.
func (a *workStealing) stealTop() *Context {
	a.deqMu.Lock()
	defer a.deqMu.Unlock()
	if len(a.deque) == 0 {
		return nil
	}
	ctx := a.deque[0]
	a.deque = a.deque[1:]
	return ctx
}

func (a *workStealing) PickNext() *Context {
	if ctx := a.popBottom(); ctx != nil {
		return ctx
	}
	for _, victim := range shuffled(a.pool.siblings(a)) {
		if ctx := victim.stealTop(); ctx != nil {
			ctx.detach()
			if a.self != nil {
				ctx.attach(a.self)
			}
			return ctx
		}
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

func (a *workStealing) HasReady() bool {
	a.deqMu.Lock()
	local := len(a.deque) > 0
	a.deqMu.Unlock()
	if local || a.mainCtx != nil {
		return true
	}
	for _, victim := range a.pool.siblings(a) {
		victim.deqMu.Lock()
		n := len(victim.deque)
		victim.deqMu.Unlock()
		if n > 0 {
			return true
		}
	}
	return false
}

func (a *workStealing) Notify() {
	a.pool.wakeAny()
}

func (a *workStealing) Park(maxWait time.Duration) {
	if a.self == nil {
		return
	}
	a.pool.mu.Lock()
	a.pool.parked[a.self] = struct{}{}
	a.pool.mu.Unlock()
	a.self.defaultPark(maxWait)
	a.pool.mu.Lock()
	delete(a.pool.parked, a.self)
	a.pool.mu.Unlock()
}

// shuffled returns a randomized permutation of peers, so repeated steal
// attempts do not all probe the same victim first and form a convoy (spec
// §4.3).
func shuffled(peers []*workStealing) []*workStealing {
	rand.Shuffle(len(peers), func(i, j int) { peers[i], peers[j] = peers[j], peers[i] })
	return peers
}
