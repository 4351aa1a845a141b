package node

// getNth returns the child reference for key byte b, together with the slot
// holding it, or a null reference when b is absent.
//
// The order in which keys and slots become visible does not matter: a key
// that is missing reads as absent, and a key whose slot still reads empty is
// treated as absent too.
func (l *linear) getNth(b byte) (Ref, *Slot) {
	nr := int(l.nrChild.Load())

	for i := 0; i < nr; i++ {
		if l.keys[i] != b {
			continue
		}

		slot := &l.ptrs[i]

		if ref := slot.Load(); !ref.IsNull() {
			return ref, slot
		}

		return 0, nil
	}

	return 0, nil
}

// getIthPos reads the i-th present child by position. Only recompaction uses
// it, on a node already superseded and therefore quiescent.
func (l *linear) getIthPos(i int) (byte, Ref) {
	return l.keys[i], l.ptrs[i].Load()
}

// setNth appends the mapping b -> child.
//
// Callers must hold the node's shadow mutex. The new slot is published
// first, then the key byte, then nrChild; concurrent readers either see the
// fully initialized child or nothing.
func (l *linear) setNth(b byte, child Ref) error {
	nr := int(l.nrChild.Load())

	for i := 0; i < nr; i++ {
		if l.keys[i] == b {
			return ErrExists
		}
	}

	if nr >= len(l.keys) {
		// No space left in this node shape.
		return ErrNoSpace
	}

	l.ptrs[nr].Store(child)
	l.keys[nr] = b
	l.nrChild.Store(uint32(nr + 1))

	return nil
}
