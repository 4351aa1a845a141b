// Package xunsafe provides the pointer/address punning needed by the tagged
// child references: converting between typed pointers and the raw addresses
// stored in packed slot words.
package xunsafe

import "unsafe"

// AddrOf returns the address of p as a bare integer.
func AddrOf[T any](p *T) uintptr {
	return uintptr(unsafe.Pointer(p))
}

// PtrAt reinterprets a bare address as a typed pointer.
//
// The address must come from a live allocation whose reachability is
// guaranteed by other means; the returned pointer does not extend it.
func PtrAt[T any](addr uintptr) *T {
	return (*T)(unsafe.Pointer(addr)) //nolint:govet
}
