package node

import (
	"sync/atomic"

	"github.com/flier/rcuja/internal/debug"
	"github.com/flier/rcuja/internal/xunsafe"
)

// Inode is an internal node. Exactly one of the two backing layouts is
// populated, according to the shape class the node was allocated for:
//
//   - linear and pool shapes use pools: one sub-pool for linear shapes,
//     (1 << NrPoolOrder) sub-pools for pool shapes;
//   - the pigeon shape uses slots: 256 directly indexed child slots.
//
// The shape index itself is not stored in the node; it travels in the tag
// bits of every reference to it. Mutating accessors take the index
// explicitly, the way the reference implementation passes the catalog entry
// alongside the raw node.
type Inode struct {
	pools []linear
	slots []Slot
}

// linear is the layout shared by linear nodes and pool sub-pools: the first
// nrChild entries of keys and ptrs hold the present children.
//
// The read-side linearization point is nrChild: set appends the new slot and
// key first, then bumps nrChild with a release store, so any index a reader
// observes below an acquire-loaded nrChild is fully initialized.
type linear struct {
	nrChild atomic.Uint32
	keys    []byte
	ptrs    []Slot
}

// Alloc allocates a zeroed internal node of the given shape.
func Alloc(idx uint8) *Inode {
	shape := &Shapes[idx]

	n := new(Inode)

	switch shape.Class {
	case ClassLinear, ClassPool:
		n.pools = make([]linear, 1<<shape.NrPoolOrder)
		for i := range n.pools {
			n.pools[i].keys = make([]byte, shape.MaxLinearChild)
			n.pools[i].ptrs = make([]Slot, shape.MaxLinearChild)
		}
	case ClassPigeon:
		n.slots = make([]Slot, EntriesPerNode)
	default:
		debug.Assert(false, "allocating impossible shape class %d", shape.Class)
	}

	return n
}

// Ref returns the tagged reference to this node under the given shape index.
func (n *Inode) Ref(idx uint8) Ref {
	return MakeRef(xunsafe.AddrOf(n), idx)
}
