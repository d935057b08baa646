package runtime

import (
	"fmt"
	"sort"
)

// Env is the grid-facing side of the conveyor runtime. Accept offers item,
// leaving the belt tile from, to the non-belt tile at p; returning false
// leaves the item at the exit and stalls the segment.
type Env interface {
	Accept(p Pos, from Pos, item uint8) bool
}

// Hooks lets the caller observe registry changes. Every field is optional.
type Hooks struct {
	// OnCreate sees a new segment once its tiles and items are in place.
	OnCreate  func(s *Segment)
	OnMerge   func(into, absorbed SegmentID)
	// OnSplit runs after OnCreate for the head piece.
	OnSplit   func(tail, head SegmentID)
	// OnHandOff reports an item that left s through its exit onto to.
	OnHandOff func(s *Segment, to Pos, item uint8)
	// OnDestroy reports items lost when the belt tile at p was removed.
	OnDestroy func(id SegmentID, p Pos, items []uint8)
}

// Registry owns every segment, the tile -> segment index and the scheduler
// that drives segment updates.
type Registry struct {
	env   Env
	hooks Hooks

	segs  map[SegmentID]*Segment
	owner map[Pos]SegmentID
	sched Scheduler
	next  SegmentID
}

func NewRegistry(env Env, hooks Hooks) *Registry {
	return &Registry{
		env:   env,
		hooks: hooks,
		segs:  map[SegmentID]*Segment{},
		owner: map[Pos]SegmentID{},
		sched: newScheduler(),
	}
}

func (r *Registry) Segment(id SegmentID) (*Segment, bool) {
	s, ok := r.segs[id]
	return s, ok
}

func (r *Registry) SegmentAt(p Pos) (*Segment, bool) {
	id, ok := r.owner[p]
	if !ok {
		return nil, false
	}
	return r.segs[id], true
}

// Segments returns every live segment ordered by id.
func (r *Registry) Segments() []*Segment {
	out := make([]*Segment, 0, len(r.segs))
	for _, s := range r.segs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *Registry) Len() int              { return len(r.segs) }
func (r *Registry) Scheduler() *Scheduler { return &r.sched }

// Place adds a belt tile at p. It extends the run feeding into p, or the run
// p feeds into, and otherwise starts a new segment. Extension merges runs
// that become adjacent, so a straight same-kind line is always one segment.
func (r *Registry) Place(p Pos, dir Dir, kind uint16, speed int) *Segment {
	if !dir.Valid() {
		panic(fmt.Sprintf("conveyor: invalid direction %d", dir))
	}
	if _, taken := r.owner[p]; taken {
		panic(fmt.Sprintf("conveyor: tile %v already has a belt", p))
	}

	behind := p.Step(dir.Opposite())
	if s := r.joinable(behind, dir, kind); s != nil && s.end == behind {
		s.ExtendHead(p)
		return r.segs[r.owner[p]]
	}
	ahead := p.Step(dir)
	if s := r.joinable(ahead, dir, kind); s != nil && s.start == ahead {
		s.ExtendTail(p)
		return r.segs[r.owner[p]]
	}
	s := r.create(p, p, dir, kind, speed)
	r.created(s)
	return s
}

// Offer hands item from the tile from to the belt at p. The belt accepts when
// it does not face back into from and the entry point has room.
func (r *Registry) Offer(p Pos, from Pos, item uint8) bool {
	s, ok := r.SegmentAt(p)
	if !ok {
		return false
	}
	if p.Step(s.dir) == from {
		return false
	}
	if !s.CanAccept(p) {
		return false
	}
	s.HandleItem(p, item)
	return true
}

// Tick updates every scheduled segment once, in id order.
func (r *Registry) Tick(dt float64) {
	for _, id := range r.sched.Active() {
		if s, ok := r.segs[id]; ok {
			s.Update(dt)
		}
	}
}

// IsBelt reports whether p is owned by a segment.
func (r *Registry) IsBelt(p Pos) bool {
	_, ok := r.owner[p]
	return ok
}

func (r *Registry) create(start, end Pos, dir Dir, kind uint16, speed int) *Segment {
	r.next++
	s := &Segment{
		id:    r.next,
		reg:   r,
		start: start,
		end:   end,
		seed:  start,
		dir:   dir,
		kind:  kind,
		speed: speed,
	}
	r.segs[s.id] = s
	for p := range s.Tiles() {
		r.owner[p] = s.id
	}
	r.sched.Register(s.id, s.seed)
	return s
}

func (r *Registry) created(s *Segment) {
	if r.hooks.OnCreate != nil {
		r.hooks.OnCreate(s)
	}
}

func (r *Registry) own(p Pos, id SegmentID) {
	if cur, ok := r.owner[p]; ok && cur != id {
		panic(fmt.Sprintf("conveyor: tile %v owned by segment %d, claimed by %d", p, cur, id))
	}
	r.owner[p] = id
}

// joinable returns the segment at p when it runs in dir with the same kind.
func (r *Registry) joinable(p Pos, dir Dir, kind uint16) *Segment {
	s, ok := r.SegmentAt(p)
	if !ok || s.dir != dir || s.kind != kind {
		return nil
	}
	return s
}

// reseed registers the segment under its current start tile.
func (r *Registry) reseed(s *Segment) {
	s.seed = s.start
	r.sched.Register(s.id, s.seed)
}

func (r *Registry) handOff(s *Segment, item uint8) bool {
	to := s.end.Step(s.dir)
	var ok bool
	if r.IsBelt(to) {
		ok = r.Offer(to, s.end, item)
	} else if r.env != nil {
		ok = r.env.Accept(to, s.end, item)
	}
	if ok && r.hooks.OnHandOff != nil {
		r.hooks.OnHandOff(s, to, item)
	}
	return ok
}
