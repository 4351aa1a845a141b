package node

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// child builds a distinct, recognizably tagged reference for tests. The
// address only needs to be non-zero and aligned.
func child(i int) Ref {
	return MakeRef(uintptr(i+1)<<TypeBits, 0)
}

func TestLinearNode(t *testing.T) {
	Convey("Given a fresh shape-2 linear node", t, func() {
		const idx = 2 // up to 7 children

		n := Alloc(idx)
		ref := n.Ref(idx)

		Convey("An absent byte reads as a null reference", func() {
			got, slot := GetNth(ref, 42)
			So(got.IsNull(), ShouldBeTrue)
			So(slot, ShouldBeNil)
		})

		Convey("When inserting children", func() {
			So(SetNth(idx, n, 10, child(0)), ShouldBeNil)
			So(SetNth(idx, n, 20, child(1)), ShouldBeNil)

			Convey("They become visible with their slot", func() {
				got, slot := GetNth(ref, 10)
				So(got, ShouldEqual, child(0))
				So(slot, ShouldNotBeNil)
				So(slot.Load(), ShouldEqual, child(0))

				got, _ = GetNth(ref, 20)
				So(got, ShouldEqual, child(1))
			})

			Convey("A duplicate byte is rejected", func() {
				So(SetNth(idx, n, 10, child(2)), ShouldEqual, ErrExists)
			})

			Convey("The shape fills up to its capacity, then overflows", func() {
				for i := 2; i < int(Shapes[idx].MaxChild); i++ {
					So(SetNth(idx, n, byte(30+i), child(i)), ShouldBeNil)
				}
				So(SetNth(idx, n, 200, child(9)), ShouldEqual, ErrNoSpace)
			})
		})

		Convey("The null shape never takes a child", func() {
			So(SetNth(IndexNull, nil, 0, child(0)), ShouldEqual, ErrNoSpace)
		})
	})
}

func TestPoolNode(t *testing.T) {
	Convey("Given a fresh shape-5 pool node", t, func() {
		const idx = 5 // 2 sub-pools of up to 27 children each

		n := Alloc(idx)
		ref := n.Ref(idx)
		max := int(Shapes[idx].MaxLinearChild)

		Convey("Key bytes route to sub-pools by their top bits", func() {
			So(SetNth(idx, n, 0x01, child(0)), ShouldBeNil)
			So(SetNth(idx, n, 0x81, child(1)), ShouldBeNil)

			got, _ := GetNth(ref, 0x01)
			So(got, ShouldEqual, child(0))
			got, _ = GetNth(ref, 0x81)
			So(got, ShouldEqual, child(1))
			got, _ = GetNth(ref, 0x41)
			So(got.IsNull(), ShouldBeTrue)
		})

		Convey("One sub-pool can overflow while the node is far from full", func() {
			// All in the low sub-pool (top bit clear).
			for i := 0; i < max; i++ {
				So(SetNth(idx, n, byte(i), child(i)), ShouldBeNil)
			}
			So(SetNth(idx, n, byte(max), child(max)), ShouldEqual, ErrNoSpace)

			// The high sub-pool still has room.
			So(SetNth(idx, n, 0x80, child(max+1)), ShouldBeNil)
		})
	})
}

func TestPigeonNode(t *testing.T) {
	Convey("Given a fresh pigeon node", t, func() {
		const idx = FallbackIndex

		n := Alloc(idx)
		ref := n.Ref(idx)

		Convey("Every byte has an addressable slot, empty or not", func() {
			got, slot := GetNth(ref, 7)
			So(got.IsNull(), ShouldBeTrue)
			So(slot, ShouldNotBeNil)
		})

		Convey("It takes all 256 children, once each", func() {
			for i := 0; i < EntriesPerNode; i++ {
				So(SetNth(idx, n, byte(i), child(i)), ShouldBeNil)
			}
			So(SetNth(idx, n, 0, child(0)), ShouldEqual, ErrExists)

			got, _ := GetNth(ref, 255)
			So(got, ShouldEqual, child(255))
		})
	})
}

func TestIterate(t *testing.T) {
	Convey("Given populated nodes of each recompactable class", t, func() {
		collect := func(idx uint8, n *Inode) map[byte]Ref {
			seen := make(map[byte]Ref)
			Iterate(idx, n, func(b byte, c Ref) bool {
				seen[b] = c
				return true
			})
			return seen
		}

		Convey("Iterating a linear node yields every present child", func() {
			const idx = 3

			n := Alloc(idx)
			for i := 0; i < 5; i++ {
				So(SetNth(idx, n, byte(i*17), child(i)), ShouldBeNil)
			}

			seen := collect(idx, n)
			So(len(seen), ShouldEqual, 5)
			for i := 0; i < 5; i++ {
				So(seen[byte(i*17)], ShouldEqual, child(i))
			}
		})

		Convey("Iterating a pool node walks all sub-pools", func() {
			const idx = 6

			n := Alloc(idx)
			for i := 0; i < 16; i++ {
				So(SetNth(idx, n, byte(i*16), child(i)), ShouldBeNil)
			}

			So(len(collect(idx, n)), ShouldEqual, 16)
		})

		Convey("Iterating the null shape yields nothing", func() {
			So(len(collect(IndexNull, nil)), ShouldEqual, 0)
		})

		Convey("Iteration stops when the callback declines", func() {
			const idx = 4

			n := Alloc(idx)
			for i := 0; i < 10; i++ {
				So(SetNth(idx, n, byte(i), child(i)), ShouldBeNil)
			}

			var count int
			Iterate(idx, n, func(byte, Ref) bool {
				count++
				return count < 3
			})
			So(count, ShouldEqual, 3)
		})
	})
}
