package ja

import "sync/atomic"

// Node is the intrusive link callers embed, as the first field, in whatever
// they store in the array:
//
//	type item struct {
//		ja.Node
//		payload string
//	}
//
// All user nodes added under one key are chained through this link, the
// newest behind the head. Ownership of the node transfers to the container
// on Add.
type Node struct {
	next atomic.Pointer[Node]
}

// Next returns the following node of the chain, or nil at the end.
//
// Safe inside a read-side critical section: chain links are published with
// release stores.
func (n *Node) Next() *Node { return n.next.Load() }
