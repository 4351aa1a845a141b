// Package ja implements an RCU-protected Judy array: an ordered associative
// container mapping unsigned integer keys (8, 16, 32 or 64 bits) to chains
// of user-supplied nodes sharing that key.
//
// The container is a trie over the key's bytes. Each internal level consumes
// 8 key bits through an adaptive node (see the node package); the lowest
// level holds leaf chains. Readers walk the tree inside an RCU read-side
// critical section and never lock; writers coordinate through per-node
// shadow mutexes (see the shadow package) and publish every visible change
// with a single release store.
//
// Typical use:
//
//	arr, err := ja.New(16)
//	...
//	arr.Add(key, &item.Node)
//	...
//	flavor.ReadLock()
//	for n := arr.Lookup(key); n != nil; n = n.Next() {
//		...
//	}
//	flavor.ReadUnlock()
//
// Lookups, and any use of the returned chain, must be bracketed by the
// flavor's read-side critical section; the container does not enter one on
// the caller's behalf.
package ja
