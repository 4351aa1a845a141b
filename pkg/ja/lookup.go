package ja

import (
	"github.com/flier/rcuja/internal/xunsafe"
	"github.com/flier/rcuja/pkg/ja/node"
)

// Lookup returns the head of the chain of nodes added under key, or nil if
// the key is absent or exceeds the configured maximum.
//
// Lock-free. Must be called inside the flavor's read-side critical section,
// which must also cover any traversal of the returned chain.
func (ja *JA) Lookup(key uint64) *Node {
	if key > ja.keyMax {
		return nil
	}

	ref := ja.root.Load()
	if ref.IsNull() {
		return nil
	}

	for i := uint(1); i < ja.treeDepth; i++ {
		b := byte(key >> (8 * (ja.treeDepth - i - 1)))

		ref, _ = node.GetNth(ref, b)
		if ref.IsNull() {
			return nil
		}
	}

	// Bottom level reached: the reference is the leaf chain head.
	return xunsafe.PtrAt[Node](ref.Addr())
}
