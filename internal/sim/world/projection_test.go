package world

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"beltline.ai/internal/sim/world/feature/conveyor/runtime"
)

func TestItemPositions_FromExitEdge(t *testing.T) {
	w := newTestWorld(t)
	for x := 2; x <= 4; x++ {
		mustPlace(t, w, x, 5, "BELT", runtime.DirPosX)
	}
	for y := 3; y >= 1; y-- {
		mustPlace(t, w, 1, y, "BELT", runtime.DirNegY)
	}
	east, _ := w.Belts().SegmentAt(Pos{X: 2, Y: 5})
	east.HandleItem(Pos{X: 2, Y: 5}, 1) // rear edge of the first tile
	east.HandleItem(Pos{X: 4, Y: 5}, 0) // rear edge of the exit tile
	south, _ := w.Belts().SegmentAt(Pos{X: 1, Y: 1})
	south.HandleItem(Pos{X: 1, Y: 3}, 1)

	got := slices.Collect(w.ItemPositions(7))
	want := []ItemPos{
		{Item: 0, X: 4, Y: 5.5},
		{Item: 1, X: 2, Y: 5.5},
		{Item: 1, X: 1.5, Y: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("positions (-want +got):\n%s", diff)
	}

	if again := slices.Collect(w.ItemPositions(7)); len(again) != 0 {
		t.Fatalf("frame 7 projected twice: %v", again)
	}
	if next := slices.Collect(w.ItemPositions(8)); len(next) != 3 {
		t.Fatalf("frame 8 projected %d items", len(next))
	}
}

func TestItemPositions_EarlyStopKeepsSegmentUndrawn(t *testing.T) {
	w := newTestWorld(t)
	for x := 0; x < 3; x++ {
		mustPlace(t, w, x, 0, "BELT", runtime.DirPosX)
	}
	s, _ := w.Belts().SegmentAt(Pos{})
	s.HandleItem(Pos{X: 2}, 1)
	s.HandleItem(Pos{X: 0}, 2)

	for range w.ItemPositions(3) {
		break
	}
	got := slices.Collect(w.ItemPositions(3))
	want := []ItemPos{{Item: 1, X: 2, Y: 0.5}, {Item: 2, X: 0, Y: 0.5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("positions after early stop (-want +got):\n%s", diff)
	}
	if again := slices.Collect(w.ItemPositions(3)); len(again) != 0 {
		t.Fatalf("frame 3 projected twice: %v", again)
	}
}

func TestItemPositions_TrackMovement(t *testing.T) {
	w := newTestWorld(t)
	mustPlace(t, w, 0, 0, "HALF_BELT", runtime.DirPosY)
	mustPlace(t, w, 0, 1, "HALF_BELT", runtime.DirPosY)
	s, _ := w.Belts().SegmentAt(Pos{})
	s.HandleItem(Pos{}, 3)

	w.StepOnce(nil) // half a tile per tick
	got := slices.Collect(w.ItemPositions(100))
	if diff := cmp.Diff([]ItemPos{{Item: 3, X: 0.5, Y: 0.5}}, got); diff != "" {
		t.Fatalf("positions (-want +got):\n%s", diff)
	}
}
