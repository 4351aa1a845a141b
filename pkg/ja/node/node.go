package node

import (
	"errors"

	"github.com/flier/rcuja/internal/debug"
)

var (
	// ErrExists reports that the key byte is already mapped in the node.
	// The top-level add restarts its descent from the root on it, and the
	// duplicate then chains at the leaf.
	ErrExists = errors.New("node: child already present")

	// ErrNoSpace reports that the node shape cannot take one more child;
	// the caller recompacts to the next shape.
	ErrNoSpace = errors.New("node: no space left in this node shape")
)

// poolOf routes a key byte to its sub-pool.
//
// TODO: pool selection currently uses the highest bits; support other
// encodings.
func poolOf(shape *Shape, n *Inode, b byte) *linear {
	return &n.pools[uint(b)>>(8-shape.NrPoolOrder)]
}

// GetNth returns the child of ref for key byte b, along with the slot
// holding it inside the node, dispatching on the reference's shape.
//
// The returned slot is nil when the shape has no addressable slot for an
// absent byte (linear and pool shapes); callers on the add path then keep
// the slot through which the node itself was reached.
//
// Lock-free; safe inside a read-side critical section.
func GetNth(ref Ref, b byte) (Ref, *Slot) {
	n := ref.Inode()
	shape := ref.Shape()

	switch shape.Class {
	case ClassLinear:
		return n.pools[0].getNth(b)
	case ClassPool:
		return poolOf(shape, n, b).getNth(b)
	case ClassPigeon:
		slot := &n.slots[b]
		return slot.Load(), slot
	default:
		debug.Assert(false, "get on impossible shape class %d", shape.Class)
		return 0, nil
	}
}

// SetNth inserts the mapping b -> child into n, whose shape is idx.
//
// Callers must hold the node's shadow mutex. Returns ErrExists if b is
// already mapped, ErrNoSpace if the shape (or the routed sub-pool, or the
// null shape) cannot take the child.
func SetNth(idx uint8, n *Inode, b byte, child Ref) error {
	shape := &Shapes[idx]

	switch shape.Class {
	case ClassLinear:
		return n.pools[0].setNth(b, child)
	case ClassPool:
		return poolOf(shape, n, b).setNth(b, child)
	case ClassPigeon:
		slot := &n.slots[b]
		if !slot.Load().IsNull() {
			return ErrExists
		}
		slot.Store(child)
		return nil
	case ClassNull:
		return ErrNoSpace
	default:
		debug.Assert(false, "set on impossible shape class %d", shape.Class)
		return nil
	}
}

// Iterate calls fn for every present child of n, whose shape is idx, until
// fn returns false.
//
// Only recompaction iterates nodes, single-threaded, once the node has been
// superseded; pigeon nodes are never recompacted upward and the null shape
// has nothing to yield.
func Iterate(idx uint8, n *Inode, fn func(b byte, child Ref) bool) {
	shape := &Shapes[idx]

	switch shape.Class {
	case ClassLinear, ClassPool:
		for p := range n.pools {
			pool := &n.pools[p]
			nr := int(pool.nrChild.Load())

			for i := 0; i < nr; i++ {
				b, child := pool.getIthPos(i)
				if child.IsNull() {
					continue
				}
				if !fn(b, child) {
					return
				}
			}
		}
	case ClassNull:
		// Nothing to copy.
	default:
		debug.Assert(false, "iterate on impossible shape class %d", shape.Class)
	}
}
