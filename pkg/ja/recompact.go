package ja

import (
	"errors"

	"github.com/flier/rcuja/internal/debug"
	"github.com/flier/rcuja/internal/xunsafe"
	"github.com/flier/rcuja/pkg/ja/node"
	"github.com/flier/rcuja/pkg/ja/shadow"
)

// recompactAdd copies the children of oldNode into a fresh node of the next
// larger shape, inserts b -> child, and hands the replacement back through
// *ref for the caller to publish. The superseded node's shadow is cleared
// and its storage released after a grace period.
//
// The replacement's shadow inherits oldSh's mutex, so the caller's critical
// section spans the swap. If any insertion overflows a sub-pool of a pool
// shape, the candidate is discarded and the copy restarts into a pigeon
// node; such fallback happens at most once per call, and the shape index
// never decreases.
func (ja *JA) recompactAdd(oldIdx uint8, oldNode *node.Inode, oldSh *shadow.Node, ref *node.Ref, b byte, child node.Ref) error {
	var newIdx uint8
	if oldSh == nil || oldIdx == node.IndexNull {
		newIdx = 0
	} else {
		newIdx = oldIdx + 1
	}

	debug.Assert(node.Shapes[oldIdx].Class != node.ClassPigeon, "recompacting a pigeon node")

	fallback := false
	for {
		debug.Log("recompact", "recompact to shape %d", newIdx)

		newNode := node.Alloc(newIdx)
		newRef := newNode.Ref(newIdx)

		newSh := ja.ht.Set(newRef.Addr(), oldSh, newNode)
		if newSh == nil {
			return ErrOutOfMemory
		}
		if fallback {
			newSh.FallbackRemovalCount = shadow.NrFallbackRemovals
		}

		toosmall := false
		insert := func(v byte, r node.Ref) bool {
			err := node.SetNth(newIdx, newNode, v, r)
			if err != nil {
				if node.Shapes[newIdx].Class == node.ClassPool && errors.Is(err, node.ErrNoSpace) {
					toosmall = true
					return false
				}
				debug.Assert(false, "recompaction insert of byte %#02x: %v", v, err)
				return false
			}
			newSh.NrChild++
			return true
		}

		// Copy the old children by reference; tagged child refs are
		// immutable.
		if oldIdx != node.IndexNull {
			node.Iterate(oldIdx, oldNode, insert)
		}
		if !toosmall {
			insert(b, child)
		}

		if toosmall {
			// A sub-pool filled before the node did. Discard the
			// candidate and restart into the largest shape.
			ja.ht.Clear(newRef.Addr(), newSh, shadow.ClearFreeNode|shadow.ClearFreeLock)

			newIdx = node.FallbackIndex
			ja.nrFallback.Add(1)
			fallback = true

			debug.Log("recompact", "fallback to shape %d", newIdx)
			continue
		}

		*ref = newRef

		if oldNode != nil {
			ja.ht.Clear(xunsafe.AddrOf(oldNode), oldSh, shadow.ClearFreeNode)
		}

		return nil
	}
}
