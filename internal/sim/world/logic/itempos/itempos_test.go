package itempos

import "testing"

func TestPack_RoundTrip(t *testing.T) {
	gaps := []int{0, 1, MinGap, Unit, 3 * Unit, 1 << 16, MaxGap - 1, MaxGap}
	for item := 0; item <= 255; item++ {
		for _, gap := range gaps {
			w := Pack(uint8(item), gap)
			gotItem, gotGap := Unpack(w)
			if gotItem != uint8(item) || gotGap != gap {
				t.Fatalf("Unpack(Pack(%d,%d)) = (%d,%d)", item, gap, gotItem, gotGap)
			}
		}
	}
}

func TestPack_RoundTripLowBits(t *testing.T) {
	for gap := 0; gap < 1<<12; gap++ {
		if got := Pack(0xAB, gap).Gap(); got != gap {
			t.Fatalf("gap %d: got %d", gap, got)
		}
	}
}

func TestWithGap_KeepsItem(t *testing.T) {
	w := Pack(7, Unit).WithGap(MinGap)
	if w.Item() != 7 || w.Gap() != MinGap {
		t.Fatalf("WithGap: item=%d gap=%d", w.Item(), w.Gap())
	}
}

func TestPack_PanicsOutOfRange(t *testing.T) {
	for _, gap := range []int{-1, MaxGap + 1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("Pack(_, %d) did not panic", gap)
				}
			}()
			_ = Pack(1, gap)
		}()
	}
}
