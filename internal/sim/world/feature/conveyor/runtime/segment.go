package runtime

import (
	"fmt"
	"iter"
	"sync/atomic"

	"beltline.ai/internal/sim/world/logic/itempos"
	"beltline.ai/internal/sim/world/logic/itemqueue"
	"beltline.ai/internal/sim/world/logic/mathx"
)

type SegmentID uint32

// Segment is one straight run of same-direction, same-kind belt tiles that
// share a single item queue and a single scheduled update. Items travel from
// start toward end and leave through the tile end faces.
type Segment struct {
	id  SegmentID
	reg *Registry

	start Pos
	end   Pos
	seed  Pos
	dir   Dir
	kind  uint16
	speed int

	// stall is the offset from the head of the item currently allowed to
	// advance while the head is blocked at the exit.
	stall int
	queue itemqueue.Queue

	// drawn holds the last projected frame + 1.
	drawn atomic.Uint64
}

func (s *Segment) ID() SegmentID   { return s.id }
func (s *Segment) Start() Pos      { return s.start }
func (s *Segment) End() Pos        { return s.end }
func (s *Segment) Seed() Pos       { return s.seed }
func (s *Segment) Dir() Dir        { return s.dir }
func (s *Segment) Kind() uint16    { return s.kind }
func (s *Segment) Speed() int      { return s.speed }
func (s *Segment) StallIndex() int { return s.stall }
func (s *Segment) ItemCount() int  { return s.queue.Len() }

// Queue returns a copy of the segment's queue.
func (s *Segment) Queue() itemqueue.Queue { return s.queue.Clone() }

// Length is the number of tiles in the run.
func (s *Segment) Length() int {
	return mathx.Chebyshev(s.start.X, s.start.Y, s.end.X, s.end.Y) + 1
}

// Contains reports whether p is one of the segment's tiles.
func (s *Segment) Contains(p Pos) bool {
	v := s.dir.Vec()
	dx, dy := p.X-s.start.X, p.Y-s.start.Y
	if v.X == 0 && dx != 0 || v.Y == 0 && dy != 0 {
		return false
	}
	i := dx*v.X + dy*v.Y
	return i >= 0 && i < s.Length()
}

// TileIndex is p's 0-based offset from start. p must lie on the segment.
func (s *Segment) TileIndex(p Pos) int {
	if !s.Contains(p) {
		panic(fmt.Sprintf("conveyor: tile %v not on segment %d [%v..%v]", p, s.id, s.start, s.end))
	}
	return mathx.Chebyshev(p.X, p.Y, s.start.X, s.start.Y)
}

// TileAt is the tile i steps from start.
func (s *Segment) TileAt(i int) Pos {
	v := s.dir.Vec()
	return Pos{X: s.start.X + v.X*i, Y: s.start.Y + v.Y*i}
}

// Tiles yields every tile from start to end.
func (s *Segment) Tiles() iter.Seq[Pos] {
	return func(yield func(Pos) bool) {
		n := s.Length()
		for i := 0; i < n; i++ {
			if !yield(s.TileAt(i)) {
				return
			}
		}
	}
}

// Items yields (item, distance to exit) for every queued item, head first.
func (s *Segment) Items() iter.Seq2[uint8, int] { return s.queue.All() }

// insertDistance is the distance from the exit at which an item entering
// through origin is placed: the rear edge of origin.
func (s *Segment) insertDistance(origin Pos) int {
	if !s.Contains(origin) {
		panic(fmt.Sprintf("conveyor: item entered at %v, not on segment %d [%v..%v]", origin, s.id, s.start, s.end))
	}
	return (1 + mathx.Chebyshev(origin.X, origin.Y, s.end.X, s.end.Y)) * itempos.Unit
}

// HandleItem puts item onto the belt at origin.
func (s *Segment) HandleItem(origin Pos, item uint8) {
	s.queue.InsertByDistance(s.insertDistance(origin), item)
}

// CanAccept reports whether an item entering at origin would keep at least
// MinGap to every item already queued.
func (s *Segment) CanAccept(origin Pos) bool {
	d := s.insertDistance(origin)
	for _, at := range s.queue.All() {
		if mathx.AbsInt(at-d) < itempos.MinGap {
			return false
		}
	}
	return true
}

// Update advances the segment by one tick. dt scales speed (1 = nominal tick).
func (s *Segment) Update(dt float64) {
	if s.queue.Empty() {
		return
	}

	head := s.queue.Head()
	if head.Gap() == 0 {
		if s.reg.handOff(s, head.Item()) {
			s.queue.PopHead()
			s.stall = 0
			if s.queue.Empty() {
				return
			}
		} else if s.stall == 0 {
			s.stall = 1
		}
	} else {
		s.stall = 0
	}

	s.stall = mathx.ClampInt(s.stall, 0, s.queue.Len()-1)
	idx := s.queue.Len() - 1 - s.stall
	active := s.queue.At(idx)

	if s.stall != 0 && active.Gap() <= itempos.MinGap {
		// Caught up with the item ahead; let the next one back close in.
		s.stall++
		return
	}

	moved := max(1, int(dt*float64(s.speed)))
	floor := 0
	if s.stall != 0 {
		floor = itempos.MinGap
	}
	s.queue.SetGap(idx, max(active.Gap()-moved, floor))
}

// ExtendTail grows the segment by p, the tile directly behind start.
func (s *Segment) ExtendTail(p Pos) {
	if p != s.start.Step(s.dir.Opposite()) {
		panic(fmt.Sprintf("conveyor: %v is not behind segment %d start %v", p, s.id, s.start))
	}
	r := s.reg
	s.start = p
	r.own(p, s.id)
	r.reseed(s)

	behind := p.Step(s.dir.Opposite())
	if other := r.joinable(behind, s.dir, s.kind); other != nil && other != s && other.end == behind {
		other.Merge(s)
	}
}

// ExtendHead grows the segment by p, the tile directly past end. Queued items
// keep their position, so the head is now one more tile from the exit.
func (s *Segment) ExtendHead(p Pos) {
	if p != s.end.Step(s.dir) {
		panic(fmt.Sprintf("conveyor: %v is not ahead of segment %d end %v", p, s.id, s.end))
	}
	r := s.reg
	s.end = p
	r.own(p, s.id)
	if !s.queue.Empty() {
		n := s.queue.Len()
		s.queue.SetGap(n-1, s.queue.At(n-1).Gap()+itempos.Unit)
	}

	ahead := p.Step(s.dir)
	if other := r.joinable(ahead, s.dir, s.kind); other != nil && other != s && other.start == ahead {
		s.Merge(other)
	}
}

// Merge absorbs other, which must start on the tile s faces into. other stops
// being scheduled and disappears from the registry.
func (s *Segment) Merge(other *Segment) {
	if other == nil || other == s {
		panic("conveyor: merge with self or nil")
	}
	if other.start != s.end.Step(s.dir) || other.dir != s.dir || other.kind != s.kind {
		panic(fmt.Sprintf("conveyor: segment %d [%v..%v] cannot merge %d [%v..%v]",
			s.id, s.start, s.end, other.id, other.start, other.end))
	}
	r := s.reg
	r.sched.Deregister(other.id)

	offset := other.Length()*itempos.Unit - other.queue.Total()
	for p := range other.Tiles() {
		r.owner[p] = s.id
	}
	s.end = other.end
	s.queue.Concat(other.queue, offset)
	// The head item now belongs to other's run, so its stall state carries over.
	s.stall = other.stall

	delete(r.segs, other.id)
	if r.hooks.OnMerge != nil {
		r.hooks.OnMerge(s.id, other.id)
	}
}

// MarkDrawn claims frame for the caller. It returns false when the segment
// was already projected for that frame.
func (s *Segment) MarkDrawn(frame uint64) bool {
	return s.drawn.Swap(frame+1) != frame+1
}

// ReleaseDrawn gives up a claim on frame taken by MarkDrawn.
func (s *Segment) ReleaseDrawn(frame uint64) { s.drawn.CompareAndSwap(frame+1, 0) }
