package ja

import (
	"sync/atomic"

	"github.com/flier/rcuja/internal/debug"
	"github.com/flier/rcuja/internal/xunsafe"
	"github.com/flier/rcuja/pkg/ja/node"
	"github.com/flier/rcuja/pkg/ja/shadow"
	"github.com/flier/rcuja/pkg/rcu"
)

// JA is an RCU-protected Judy array.
//
// All methods are safe for concurrent use, with the exception of Destroy,
// which requires that no other operation can run anymore.
type JA struct {
	root node.Slot

	ht     *shadow.Table
	flavor rcu.Flavor

	// treeDepth counts the leaf level plus one level for the root
	// pointer slot itself.
	treeDepth uint
	keyMax    uint64

	nrFallback atomic.Uint64
}

// New creates a Judy array keyed by unsigned integers of the given width,
// one of 8, 16, 32 or 64, using the process-wide default RCU flavor.
func New(keyBits uint) (*JA, error) {
	return NewWithFlavor(keyBits, rcu.Default())
}

// NewWithFlavor is New with an explicit RCU flavor.
func NewWithFlavor(keyBits uint, flavor rcu.Flavor) (*JA, error) {
	switch keyBits {
	case 8, 16, 32, 64:
	default:
		return nil, ErrInvalidKeyBits
	}

	ja := &JA{
		flavor:    flavor,
		treeDepth: keyBits/8 + 1,
		keyMax:    ^uint64(0) >> (64 - keyBits),
		ht:        shadow.NewTable(flavor),
	}
	debug.Assert(ja.treeDepth <= node.MaxDepth, "tree depth %d out of range", ja.treeDepth)

	// The root pointer slot gets a shadow entry keyed by its own
	// address, so an add at the first level locks "the parent of the
	// root" like any other parent. It lives until Destroy.
	if ja.ht.Set(xunsafe.AddrOf(&ja.root), nil, nil) == nil {
		return nil, ErrOutOfMemory
	}

	return ja, nil
}

// Flavor returns the RCU flavor this array publishes through. Lookups and
// chain walks must run inside its read-side critical section.
func (ja *JA) Flavor() rcu.Flavor { return ja.flavor }

// NrFallback returns how many times recompaction had to fall back to a
// pigeon node because a pool sub-pool overflowed. Diagnostic only.
func (ja *JA) NrFallback() uint64 { return ja.nrFallback.Load() }

// Destroy disposes of every internal node and shadow entry, then the shadow
// table itself.
//
// The caller must guarantee that no concurrent operation is running and
// that none can start.
func (ja *JA) Destroy() error {
	// Flush reclamation still in flight before tearing the table down.
	ja.flavor.Barrier()

	ja.ht.Prune(shadow.ClearFreeNode | shadow.ClearFreeLock)

	if n := ja.nrFallback.Load(); n > 0 {
		debug.Log("destroy", "judy array used %d fallback node(s)", n)
	}

	return nil
}
