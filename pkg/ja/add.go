package ja

import (
	"errors"

	"github.com/flier/rcuja/internal/debug"
	"github.com/flier/rcuja/internal/xunsafe"
	"github.com/flier/rcuja/pkg/ja/node"
	"github.com/flier/rcuja/pkg/ja/shadow"
)

// Add inserts n under key. Duplicate keys are allowed: further nodes chain
// behind the existing leaf head.
//
// Returns ErrInvalidKey if key exceeds the configured maximum, or
// ErrOutOfMemory. Internal retries caused by concurrent recompaction are
// absorbed here and never surfaced.
//
// Add enters the flavor's read-side critical section on its own: the
// descent dereferences nodes that a concurrent recompaction may be about to
// reclaim.
func (ja *JA) Add(key uint64, n *Node) error {
	if key > ja.keyMax {
		return ErrInvalidKey
	}

	ja.flavor.ReadLock()
	defer ja.flavor.ReadUnlock()

	for {
		err, again := ja.addOnce(key, n)
		if !again {
			return err
		}
	}
}

// addOnce is one descent from the root. again requests a restart: the node
// we meant to lock was superseded, or the slot we meant to fill was taken.
func (ja *JA) addOnce(key uint64, n *Node) (err error, again bool) {
	td := ja.treeDepth

	// Use the root pointer's own address as the lock key for level 1.
	var parent2 node.Ref
	parent := node.MakeRef(xunsafe.AddrOf(&ja.root), 0)
	slot := &ja.root
	cur := slot.Load()

	// Iterate on all internal levels.
	for i := uint(1); i < td; i++ {
		if cur.IsNull() {
			err = ja.attach(slot, parent, parent2, key, i, n)
			return err, errors.Is(err, errRetry) || errors.Is(err, node.ErrExists)
		}

		b := byte(key >> (8 * (td - i - 1)))

		parent2 = parent
		parent = cur

		var s *node.Slot
		cur, s = node.GetNth(cur, b)
		if s != nil {
			// Linear shapes expose no slot for an absent byte; keep
			// the slot through which the current node was reached, so
			// a recompaction can swap it there.
			slot = s
		}
	}

	// Bottom of the tree: attach a leaf, or chain the duplicate onto the
	// existing chain head.
	if cur.IsNull() {
		err = ja.attach(slot, parent, parent2, key, td, n)
	} else {
		err = ja.chain(xunsafe.PtrAt[Node](cur.Addr()), n)
	}

	return err, errors.Is(err, errRetry) || errors.Is(err, node.ErrExists)
}

// attach builds the missing branch for key below level and publishes it.
//
// nodeRef is the node in which the empty slot was found (or the synthetic
// root reference at level 1) and parentRef its own parent, if any. Locks are
// taken child first, then parent; a lock that cannot be taken because the
// node was superseded aborts with errRetry, which restarts from the root
// and thereby breaks any deadlock cycle.
//
// The entire new chain, from a fresh shape-0 node per level down to the leaf
// head holding n, becomes visible through a single release store: either the
// publication done inside setNodeNth (in-place insert into nodeRef), or the
// slot store performed here (recompacted nodeRef, or the root slot).
func (ja *JA) attach(slot *node.Slot, nodeRef, parentRef node.Ref, key uint64, level uint, n *Node) error {
	sh := ja.ht.LookupLock(nodeRef.Addr())
	if sh == nil {
		return errRetry
	}
	defer sh.Unlock()

	if !parentRef.IsNull() {
		psh := ja.ht.LookupLock(parentRef.Addr())
		if psh == nil {
			return errRetry
		}
		defer psh.Unlock()
	}

	if level == 1 && !slot.Load().IsNull() {
		// The root slot was filled while we waited for its lock.
		return errRetry
	}

	td := ja.treeDepth

	// Nodes created so far, for unwinding. The first entry is the leaf
	// head, whose memory belongs to the caller's node.
	created := make([]node.Ref, 0, node.MaxDepth)

	unwind := func(err error) error {
		for i, ref := range created {
			flags := shadow.ClearFreeLock
			if i > 0 {
				flags |= shadow.ClearFreeNode
			}
			ja.ht.Clear(ref.Addr(), nil, flags)
		}
		return err
	}

	// The new branch starts as a singleton chain: n is the leaf head.
	n.next.Store(nil)
	iter := node.MakeRef(xunsafe.AddrOf(n), 0)

	leafSh := ja.ht.Set(iter.Addr(), nil, n)
	if leafSh == nil {
		return ErrOutOfMemory
	}
	created = append(created, iter)

	// Build the branch bottom-up, one fresh node per missing level.
	for i := td; i > level; i-- {
		b := byte(key >> (8 * (td - i)))
		debug.Log("attach", "branch creation level %d, key byte %#02x", i-1, b)

		var dest node.Ref
		if err := ja.setNodeNth(&dest, b, iter, nil); err != nil {
			return unwind(err)
		}
		created = append(created, dest)
		iter = dest
	}

	if level > 1 {
		// Hook the branch into the node that held the vacancy.
		b := byte(key >> (8 * (td - level)))

		dest := nodeRef
		if err := ja.setNodeNth(&dest, b, iter, sh); err != nil {
			return unwind(err)
		}

		if dest == nodeRef {
			// In-place insert; setNodeNth already published the
			// branch through the node's own layout.
			return nil
		}

		// The node was recompacted; swap the replacement into the
		// slot it occupies in its parent, whose lock we hold.
		created = append(created, dest)
		iter = dest
	}

	debug.Log("attach", "publish branch %#x at level %d", iter, level)
	slot.Store(iter)

	return nil
}

// setNodeNth inserts the mapping b -> child into the node referenced by
// *ref, recompacting it to the next shape when full. On recompaction *ref is
// updated to the replacement node; the caller publishes it.
//
// sh is the shadow of the target node, held by the caller; nil when growing
// a fresh node out of the null shape.
func (ja *JA) setNodeNth(ref *node.Ref, b byte, child node.Ref, sh *shadow.Node) error {
	r := *ref

	var in *node.Inode
	if !r.IsNull() {
		in = r.Inode()
	}

	err := node.SetNth(r.TypeIndex(), in, b, child)
	if err == nil {
		if sh != nil {
			sh.NrChild++
		}
		return nil
	}

	if errors.Is(err, node.ErrNoSpace) {
		// Not enough space in this node shape; recompact.
		return ja.recompactAdd(r.TypeIndex(), in, sh, ref, b, child)
	}

	return err
}

// chain prepends n behind the head of an existing leaf chain.
//
// Fails with errRetry if the chain head was removed before its lock could be
// taken.
func (ja *JA) chain(head, n *Node) error {
	sh := ja.ht.LookupLock(xunsafe.AddrOf(head))
	if sh == nil {
		return errRetry
	}

	n.next.Store(head.next.Load())
	head.next.Store(n)

	sh.Unlock()

	return nil
}
