package shadow

import (
	"sync"
	"sync/atomic"

	"github.com/dolthub/maphash"

	"github.com/flier/rcuja/pkg/rcu"
)

const nrBucketsOrder = 10

// Table is the concurrent map from node address to shadow node.
//
// Lookup walks a bucket chain through atomic pointers and takes no lock;
// insertion and removal serialize on the bucket mutex. Entries unlinked from
// a chain stay readable by a concurrent walker, which is why liveness is
// re-checked under the shadow mutex rather than assumed from presence.
type Table struct {
	flavor  rcu.Flavor
	hasher  maphash.Hasher[uintptr]
	buckets [1 << nrBucketsOrder]bucket
}

type bucket struct {
	mu   sync.Mutex
	head atomic.Pointer[entry]
}

type entry struct {
	addr uintptr
	sh   *Node
	next atomic.Pointer[entry]
}

// NewTable creates an empty shadow table whose deferred reclamation goes
// through flavor.
func NewTable(flavor rcu.Flavor) *Table {
	return &Table{
		flavor: flavor,
		hasher: maphash.NewHasher[uintptr](),
	}
}

func (t *Table) bucketOf(addr uintptr) *bucket {
	return &t.buckets[t.hasher.Hash(addr)&(1<<nrBucketsOrder-1)]
}

func (t *Table) find(addr uintptr) *entry {
	for e := t.bucketOf(addr).head.Load(); e != nil; e = e.next.Load() {
		if e.addr == addr {
			return e
		}
	}

	return nil
}

// LookupLock finds the shadow entry for addr and locks its mutex.
//
// Returns nil if no entry exists, or if the entry was cleared between the
// lookup and the lock: the node was superseded by a concurrent
// recompaction, and the whole operation must be retried from the root.
func (t *Table) LookupLock(addr uintptr) *Node {
	e := t.find(addr)
	if e == nil {
		return nil
	}

	sh := e.sh
	sh.mu.Lock()

	if sh.removed.Load() {
		sh.mu.Unlock()
		return nil
	}

	return sh
}

// Set inserts a shadow entry for the freshly allocated node at addr, pinning
// obj until the entry is cleared.
//
// If inherit is non-nil the new entry shares inherit's mutex, which the
// caller holds: exclusion transfers to the replacement node across the
// publication swap. Otherwise the entry gets its own unlocked mutex; the
// node it guards is not published yet, so nobody can contend for it.
//
// Returns nil if an entry for addr already exists.
func (t *Table) Set(addr uintptr, inherit *Node, obj any) *Node {
	sh := &Node{obj: obj}

	if inherit != nil {
		sh.mu = inherit.mu
	} else {
		sh.mu = new(sync.Mutex)
		sh.ownsLock = true
	}

	b := t.bucketOf(addr)

	b.mu.Lock()
	defer b.mu.Unlock()

	for e := b.head.Load(); e != nil; e = e.next.Load() {
		if e.addr == addr {
			return nil
		}
	}

	e := &entry{addr: addr, sh: sh}
	e.next.Store(b.head.Load())
	b.head.Store(e)

	return sh
}

// Clear removes the entry for addr from the table. A nil sh is looked up
// from the table; clearing an address with no entry is a no-op.
//
// With ClearFreeNode the guarded node is released after a grace period, so
// readers still walking it are not disrupted. The caller either holds the
// shadow mutex or owns the only reference to the node (unpublished branches,
// destroy); either way no new locker can win the race once removed is set.
func (t *Table) Clear(addr uintptr, sh *Node, flags ClearFlag) {
	if sh == nil {
		e := t.find(addr)
		if e == nil {
			return
		}
		sh = e.sh
	}

	sh.removed.Store(true)

	b := t.bucketOf(addr)

	b.mu.Lock()
	var prev *entry
	for e := b.head.Load(); e != nil; e = e.next.Load() {
		if e.addr != addr {
			prev = e
			continue
		}
		if prev == nil {
			b.head.Store(e.next.Load())
		} else {
			prev.next.Store(e.next.Load())
		}
		break
	}
	b.mu.Unlock()

	if flags&ClearFreeNode != 0 {
		t.flavor.Defer(func() { sh.obj = nil })
	}
}

// Prune empties the table, releasing every entry and, with ClearFreeNode,
// its guarded node. Only container destroy calls it, with no concurrent
// users, so reclamation is immediate.
func (t *Table) Prune(flags ClearFlag) {
	for i := range t.buckets {
		b := &t.buckets[i]

		b.mu.Lock()
		for e := b.head.Load(); e != nil; e = e.next.Load() {
			e.sh.removed.Store(true)
			if flags&ClearFreeNode != 0 {
				e.sh.obj = nil
			}
		}
		b.head.Store(nil)
		b.mu.Unlock()
	}
}
