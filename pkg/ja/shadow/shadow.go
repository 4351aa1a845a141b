// Package shadow keeps the update-side metadata of internal nodes off-node,
// in a concurrent table keyed by node address.
//
// The hot read path of the tree touches only the node itself; the mutex,
// child count and reclamation record live here so the one- to three-child
// shapes stay a single cache line. Every reachable internal node and leaf
// list head has exactly one shadow entry; the root pointer slot has one too,
// keyed by the slot's own address, so an add at the first level can lock
// "the parent of the root" like any other parent.
package shadow

import (
	"sync"
	"sync/atomic"
)

// NrFallbackRemovals is the number of removals needed on a fallback pigeon
// node before a shrink is attempted.
const NrFallbackRemovals = 8

// ClearFlag selects the side effects of removing a shadow entry.
type ClearFlag uint8

const (
	// ClearFreeNode releases the guarded node after a grace period.
	ClearFreeNode ClearFlag = 1 << iota

	// ClearFreeLock marks the entry's lock for disposal. Clear and Prune
	// take no action on it: the mutex is garbage collected once no shadow
	// shares it.
	ClearFreeLock
)

// Node is the shadow of one internal node, leaf list head, or the root slot.
type Node struct {
	// mu serializes updates of the guarded node. It is a pointer so a
	// recompacted replacement can share the superseded node's mutex: the
	// writer's critical section then spans the pointer swap, and its
	// final unlock releases the new node too.
	mu       *sync.Mutex
	ownsLock bool

	// removed flips when the entry leaves the table; a locker that finds
	// it set lost a race with recompaction and must retry from the root.
	removed atomic.Bool

	// NrChild counts the children of the guarded node. Authoritative for
	// pigeon nodes, which keep no in-band count; redundant but
	// convenient for the others. Guarded by mu.
	NrChild int

	// FallbackRemovalCount damps shrink recompaction of fallback pigeon
	// nodes. Guarded by mu.
	FallbackRemovalCount int

	// obj pins the guarded node in memory for as long as readers may
	// still reach it through a packed slot word, which the garbage
	// collector does not trace.
	obj any
}

// Unlock releases the shadow mutex.
func (s *Node) Unlock() { s.mu.Unlock() }
