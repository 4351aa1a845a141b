package node

import (
	"sync/atomic"

	"github.com/flier/rcuja/internal/debug"
	"github.com/flier/rcuja/internal/xunsafe"
)

// Ref is a tagged child reference: one machine word whose low 3 bits encode
// a shape index into the catalog and whose high bits are the address of an
// internal node, or of a leaf list head at the last tree level.
//
// A Ref with a zero address is the empty slot, regardless of its tag bits;
// it decodes to the synthetic null shape.
//
// The packed word is not traced by the garbage collector. Every published
// node keeps a strong reference alive through its shadow-table entry until a
// grace period after it is unpublished, so decoding a Ref loaded inside a
// read-side critical section is always safe.
type Ref uintptr

// MakeRef packs an address and a shape index into a single reference.
//
// The address must be at least 8-byte aligned so the tag bits are free;
// heap allocations on 64-bit targets always are.
func MakeRef(addr uintptr, idx uint8) Ref {
	debug.Assert(addr&typeMask == 0, "node address %#x not aligned for tagging", addr)
	debug.Assert(idx < TypeMaxNr, "shape index %d out of range", idx)

	return Ref(addr&ptrMask | uintptr(idx))
}

// Addr returns the untagged node address.
func (r Ref) Addr() uintptr { return uintptr(r) & ptrMask }

// IsNull reports whether this reference is an empty slot.
func (r Ref) IsNull() bool { return r.Addr() == 0 }

// TypeIndex returns the shape index encoded in the tag, or IndexNull when
// the reference is empty.
func (r Ref) TypeIndex() uint8 {
	if r.IsNull() {
		return IndexNull
	}

	return uint8(uintptr(r) & typeMask)
}

// Shape returns the catalog entry for this reference's shape.
func (r Ref) Shape() *Shape { return &Shapes[r.TypeIndex()] }

// Inode returns the internal node this reference points to.
//
// Must not be called on empty references or leaf-level references.
func (r Ref) Inode() *Inode {
	debug.Assert(!r.IsNull(), "dereferencing an empty reference")

	return xunsafe.PtrAt[Inode](r.Addr())
}

// Slot is a single-word atomic cell holding a Ref.
//
// Loads have acquire semantics and stores release semantics, so a reader
// that observes a newly published reference also observes every write that
// initialized the node behind it.
type Slot struct {
	w atomic.Uintptr
}

// Load atomically reads the slot.
func (s *Slot) Load() Ref { return Ref(s.w.Load()) }

// Store atomically publishes r into the slot.
func (s *Slot) Store(r Ref) { s.w.Store(uintptr(r)) }
