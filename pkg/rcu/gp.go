package rcu

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timandy/routine"
)

// reader is the read-side state of one goroutine.
//
// ctr is zero while the goroutine is outside any read-side critical section;
// inside, it holds the value of the global epoch observed on entry to the
// outermost section. nesting is only ever touched by the owning goroutine.
type reader struct {
	ctr     atomic.Uint64
	nesting int
}

// Gp is the default Flavor: epoch-based grace-period detection.
//
// Each goroutine registers lazily on its first ReadLock; registrations are
// kept for the life of the flavor (a registered goroutine that has exited
// simply reads as quiescent forever, it never delays a grace period).
type Gp struct {
	// epoch only grows. A reader whose ctr is below the post-bump epoch
	// was running before Synchronize started and must be waited for.
	epoch atomic.Uint64

	readers sync.Map // goroutine id -> *reader
	tls     routine.ThreadLocal[*reader]

	mu      sync.Mutex
	drained *sync.Cond
	queue   []func()
	working bool
}

// NewGp creates an independent grace-period domain.
func NewGp() *Gp {
	g := new(Gp)
	g.epoch.Store(1)
	g.drained = sync.NewCond(&g.mu)
	g.tls = routine.NewThreadLocalWithInitial[*reader](func() *reader {
		r := new(reader)
		g.readers.Store(routine.Goid(), r)
		return r
	})

	return g
}

// ReadLock enters a read-side critical section on the current goroutine.
func (g *Gp) ReadLock() {
	r := g.tls.Get()

	if r.nesting == 0 {
		r.ctr.Store(g.epoch.Load())
	}
	r.nesting++
}

// ReadUnlock leaves the innermost read-side critical section.
func (g *Gp) ReadUnlock() {
	r := g.tls.Get()

	r.nesting--
	if r.nesting == 0 {
		r.ctr.Store(0)
	}
}

// Synchronize waits for a grace period: every reader observed inside a
// critical section that began before the call has left it.
func (g *Gp) Synchronize() {
	target := g.epoch.Add(1)

	g.readers.Range(func(_, v any) bool {
		r := v.(*reader) //nolint:errcheck

		for spins := 0; ; spins++ {
			c := r.ctr.Load()
			if c == 0 || c >= target {
				return true
			}
			if spins < 64 {
				runtime.Gosched()
			} else {
				time.Sleep(10 * time.Microsecond)
			}
		}
	})
}

// Defer schedules fn to run after a grace period. Callbacks are batched: one
// background goroutine synchronizes once per batch, then runs the batch.
func (g *Gp) Defer(fn func()) {
	g.mu.Lock()
	g.queue = append(g.queue, fn)
	if !g.working {
		g.working = true
		go g.reclaim()
	}
	g.mu.Unlock()
}

func (g *Gp) reclaim() {
	for {
		g.mu.Lock()
		if len(g.queue) == 0 {
			g.working = false
			g.drained.Broadcast()
			g.mu.Unlock()
			return
		}
		batch := g.queue
		g.queue = nil
		g.mu.Unlock()

		g.Synchronize()
		for _, fn := range batch {
			fn()
		}
	}
}

// Barrier blocks until every previously deferred callback has run.
func (g *Gp) Barrier() {
	g.mu.Lock()
	for g.working || len(g.queue) > 0 {
		g.drained.Wait()
	}
	g.mu.Unlock()
}
