package runtime

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type destroyEvent struct {
	id    SegmentID
	p     Pos
	items []uint8
}

// fiveTiles builds a +X run over x=0..4 with items placed by distance to the
// exit. Tile i covers ((4-i)u, (5-i)u]; tile 4 also holds the exit.
func fiveTiles(t *testing.T, hooks Hooks, at map[uint8]int) (*Registry, *Segment) {
	t.Helper()
	r := NewRegistry(nil, hooks)
	s := placeRun(t, r, Pos{}, DirPosX, 5, 100)
	for item := uint8(1); int(item) <= len(at); item++ {
		s.queue.InsertByDistance(at[item], item)
	}
	return r, s
}

var splitItems = map[uint8]int{
	1: 14000, // tile 0
	2: 11000, // tile 1
	3: 9000,  // tile 2, rear edge
	4: 7000,  // tile 2
	5: 2500,  // tile 4
}

func TestRemove_InteriorSplitsInTwo(t *testing.T) {
	var splits [][2]SegmentID
	var destroyed []destroyEvent
	r, s := fiveTiles(t, Hooks{
		OnSplit: func(tail, head SegmentID) { splits = append(splits, [2]SegmentID{tail, head}) },
		OnDestroy: func(id SegmentID, p Pos, items []uint8) {
			destroyed = append(destroyed, destroyEvent{id, p, items})
		},
	}, splitItems)

	dropped := r.Remove(Pos{X: 2})
	if diff := cmp.Diff([]uint8{3, 4}, dropped); diff != "" {
		t.Fatalf("dropped (-want +got):\n%s", diff)
	}
	if r.Len() != 2 {
		t.Fatalf("segments=%d want 2", r.Len())
	}

	if s.Start() != (Pos{}) || s.End() != (Pos{X: 1}) {
		t.Fatalf("tail piece [%v..%v]", s.Start(), s.End())
	}
	if diff := cmp.Diff([]int{5000, 2000}, distances(s)); diff != "" {
		t.Fatalf("tail distances (-want +got):\n%s", diff)
	}

	head, ok := r.SegmentAt(Pos{X: 3})
	if !ok || head == s {
		t.Fatalf("no separate head piece at (3,0)")
	}
	if head.Start() != (Pos{X: 3}) || head.End() != (Pos{X: 4}) {
		t.Fatalf("head piece [%v..%v]", head.Start(), head.End())
	}
	if diff := cmp.Diff([]int{2500}, distances(head)); diff != "" {
		t.Fatalf("head distances (-want +got):\n%s", diff)
	}
	if head.Speed() != s.Speed() || head.Kind() != s.Kind() {
		t.Fatalf("head piece lost belt properties")
	}

	if r.IsBelt(Pos{X: 2}) {
		t.Fatalf("removed tile still owned")
	}
	if got, _ := r.SegmentAt(Pos{X: 4}); got != head {
		t.Fatalf("(4,0) not owned by head piece")
	}
	if diff := cmp.Diff([]SegmentID{s.ID(), head.ID()}, r.Scheduler().Active()); diff != "" {
		t.Fatalf("scheduled (-want +got):\n%s", diff)
	}
	if seed, _ := r.Scheduler().Seed(head.ID()); seed != head.Start() {
		t.Fatalf("head seed %v want %v", seed, head.Start())
	}
	if diff := cmp.Diff([][2]SegmentID{{s.ID(), head.ID()}}, splits); diff != "" {
		t.Fatalf("split hook (-want +got):\n%s", diff)
	}
	want := []destroyEvent{{s.ID(), Pos{X: 2}, []uint8{3, 4}}}
	if diff := cmp.Diff(want, destroyed, cmp.AllowUnexported(destroyEvent{})); diff != "" {
		t.Fatalf("destroy hook (-want +got):\n%s", diff)
	}
}

func TestRemove_StartTileShortensRun(t *testing.T) {
	at := map[uint8]int{}
	for k, v := range splitItems {
		at[k] = v
	}
	at[6] = 15000 // rear edge of tile 0

	r, s := fiveTiles(t, Hooks{}, at)
	dropped := r.Remove(Pos{})
	if diff := cmp.Diff([]uint8{6, 1}, dropped); diff != "" {
		t.Fatalf("dropped (-want +got):\n%s", diff)
	}
	if r.Len() != 1 || s.Start() != (Pos{X: 1}) || s.End() != (Pos{X: 4}) {
		t.Fatalf("segments=%d run [%v..%v]", r.Len(), s.Start(), s.End())
	}
	if diff := cmp.Diff([]int{11000, 9000, 7000, 2500}, distances(s)); diff != "" {
		t.Fatalf("distances (-want +got):\n%s", diff)
	}
	if seed, ok := r.Scheduler().Seed(s.ID()); !ok || seed != (Pos{X: 1}) {
		t.Fatalf("seed=%v ok=%v want (1,0)", seed, ok)
	}
}

func TestRemove_EndTileRebasesItems(t *testing.T) {
	r, s := fiveTiles(t, Hooks{}, splitItems)
	dropped := r.Remove(Pos{X: 4})
	if diff := cmp.Diff([]uint8{5}, dropped); diff != "" {
		t.Fatalf("dropped (-want +got):\n%s", diff)
	}
	if r.Len() != 1 || s.End() != (Pos{X: 3}) {
		t.Fatalf("segments=%d end=%v", r.Len(), s.End())
	}
	if diff := cmp.Diff([]int{11000, 8000, 6000, 4000}, distances(s)); diff != "" {
		t.Fatalf("distances (-want +got):\n%s", diff)
	}
	if seed, _ := r.Scheduler().Seed(s.ID()); seed != (Pos{}) {
		t.Fatalf("seed moved to %v", seed)
	}
}

func TestRemove_LastTileDestroysSegment(t *testing.T) {
	var destroyed []destroyEvent
	r := NewRegistry(nil, Hooks{OnDestroy: func(id SegmentID, p Pos, items []uint8) {
		destroyed = append(destroyed, destroyEvent{id, p, items})
	}})
	s := r.Place(Pos{X: 9, Y: 9}, DirNegX, 1, 100)
	s.queue.InsertByDistance(u, 1)
	s.queue.InsertByDistance(1000, 2)

	dropped := r.Remove(Pos{X: 9, Y: 9})
	if diff := cmp.Diff([]uint8{1, 2}, dropped); diff != "" {
		t.Fatalf("dropped (-want +got):\n%s", diff)
	}
	if r.Len() != 0 || r.Scheduler().Len() != 0 || r.IsBelt(Pos{X: 9, Y: 9}) {
		t.Fatalf("segment survived: segs=%d scheduled=%d", r.Len(), r.Scheduler().Len())
	}
	if len(destroyed) != 1 || destroyed[0].id != s.ID() {
		t.Fatalf("destroy hook: %+v", destroyed)
	}
}

func TestRemove_ItemBelongsToTileItEntered(t *testing.T) {
	for k := 0; k < 5; k++ {
		r, s := fiveTiles(t, Hooks{}, nil)
		s.HandleItem(Pos{X: k}, 9)
		if diff := cmp.Diff([]uint8{9}, r.Remove(Pos{X: k})); diff != "" {
			t.Fatalf("remove entry tile %d (-want +got):\n%s", k, diff)
		}
		if k == 0 {
			continue
		}

		r, s = fiveTiles(t, Hooks{}, nil)
		s.HandleItem(Pos{X: k}, 9)
		if got := r.Remove(Pos{X: k - 1}); len(got) != 0 {
			t.Fatalf("removing tile %d behind the item dropped %v", k-1, got)
		}
		head, ok := r.SegmentAt(Pos{X: k})
		if !ok {
			t.Fatalf("no segment at (%d,0)", k)
		}
		want := []int{(5 - k) * u}
		if diff := cmp.Diff(want, distances(head)); diff != "" {
			t.Fatalf("item entered at %d (-want +got):\n%s", k, diff)
		}
	}
}

func TestRemove_ExitItemLeavesWithEndTile(t *testing.T) {
	r, s := fiveTiles(t, Hooks{}, map[uint8]int{1: 0, 2: u + 1})
	dropped := r.Remove(Pos{X: 4})
	if diff := cmp.Diff([]uint8{1}, dropped); diff != "" {
		t.Fatalf("dropped (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, distances(s)); diff != "" {
		t.Fatalf("distances (-want +got):\n%s", diff)
	}
}

func TestRemove_HeadPieceCreatedWithItems(t *testing.T) {
	var created []int
	var order []string
	r, s := fiveTiles(t, Hooks{
		OnCreate: func(seg *Segment) {
			created = append(created, seg.ItemCount())
			order = append(order, "create")
		},
		OnSplit: func(tail, head SegmentID) { order = append(order, "split") },
	}, splitItems)
	created, order = nil, nil

	r.Remove(Pos{X: 2})
	if diff := cmp.Diff([]int{1}, created); diff != "" {
		t.Fatalf("created item counts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"create", "split"}, order); diff != "" {
		t.Fatalf("hook order (-want +got):\n%s", diff)
	}
	if s.ItemCount() != 2 {
		t.Fatalf("tail items=%d", s.ItemCount())
	}
}

func TestRemove_UnknownTileIsNoop(t *testing.T) {
	r := NewRegistry(nil, Hooks{})
	r.Place(Pos{}, DirPosX, 1, 100)
	if got := r.Remove(Pos{X: 1}); got != nil {
		t.Fatalf("got %v", got)
	}
	if r.Len() != 1 {
		t.Fatalf("segments=%d", r.Len())
	}
}

func TestRemove_ThenPlaceRejoins(t *testing.T) {
	r, s := fiveTiles(t, Hooks{}, map[uint8]int{1: 14000, 2: 2500})
	r.Remove(Pos{X: 2})
	if r.Len() != 2 {
		t.Fatalf("segments=%d want 2", r.Len())
	}
	r.Place(Pos{X: 2}, DirPosX, 1, 100)
	if r.Len() != 1 || s.End() != (Pos{X: 4}) {
		t.Fatalf("segments=%d end=%v", r.Len(), s.End())
	}
	// 14000 was rebased to 5000 on the two-tile tail; it is three tiles back again.
	if diff := cmp.Diff([]int{14000, 2500}, distances(s)); diff != "" {
		t.Fatalf("distances (-want +got):\n%s", diff)
	}
}

func TestOffer_SideLoadOntoBelt(t *testing.T) {
	r := NewRegistry(&fakeEnv{}, Hooks{})
	a := placeRun(t, r, Pos{}, DirPosX, 2, u)
	b := placeRun(t, r, Pos{X: 2, Y: -1}, DirPosY, 3, u)
	a.HandleItem(Pos{X: 1}, 7)

	r.Tick(1) // a: head reaches its exit
	r.Tick(1) // a: hands off to (2,0)

	if a.ItemCount() != 0 {
		t.Fatalf("a still holds %d items", a.ItemCount())
	}
	// b enters at the rear edge of (2,0) and moves in the same tick.
	if diff := cmp.Diff([]int{u}, distances(b)); diff != "" {
		t.Fatalf("b distances (-want +got):\n%s", diff)
	}

	// The item now sits at the entry point of (2,1).
	if r.Offer(Pos{X: 2, Y: 1}, Pos{X: 1, Y: 1}, 8) {
		t.Fatalf("offer accepted without MinGap spacing")
	}
	if !r.Offer(Pos{X: 2, Y: -1}, Pos{X: 1, Y: -1}, 8) {
		t.Fatalf("offer with room refused")
	}
}

func TestOffer_RefusesBeltFacingBack(t *testing.T) {
	r := NewRegistry(nil, Hooks{})
	r.Place(Pos{X: 2}, DirNegX, 1, u)
	if r.Offer(Pos{X: 2}, Pos{X: 1}, 1) {
		t.Fatalf("belt facing into the source accepted an item")
	}
	if r.Offer(Pos{X: 5}, Pos{X: 4}, 1) {
		t.Fatalf("offer onto an empty tile accepted")
	}
}
