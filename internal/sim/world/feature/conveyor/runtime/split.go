package runtime

import "beltline.ai/internal/sim/world/logic/itempos"

// Remove deletes the belt tile at p and returns the items destroyed with it.
//
// Tile i of an n-tile segment carries the items whose distance to the exit is
// in ((n-1-i)*Unit, (n-i)*Unit], so an item entering at i's rear edge belongs
// to i. The end tile also carries the items waiting at the exit.
// Removing tile k leaves up to two runs: the tail piece [0,k-1] keeps the
// segment id and has its items rebased to its new exit, and the head piece
// [k+1,n-1] becomes a newly scheduled segment whose items keep their distance.
func (r *Registry) Remove(p Pos) []uint8 {
	id, ok := r.owner[p]
	if !ok {
		return nil
	}
	s := r.segs[id]
	n := s.Length()
	k := s.TileIndex(p)
	h := n - 1 - k
	oldEnd := s.end

	delete(r.owner, p)
	from := h * itempos.Unit
	if h == 0 {
		from = -1
	}
	rest, dropped := s.queue.Cut(from, (h+1)*itempos.Unit)
	ahead := s.queue
	s.stall = 0

	if k == 0 {
		for item := range rest.All() {
			dropped = append(dropped, item)
		}
		if n == 1 {
			r.sched.Deregister(id)
			delete(r.segs, id)
			r.destroyed(id, p, dropped)
			return dropped
		}
		s.start = p.Step(s.dir)
		s.queue = ahead
		r.reseed(s)
		r.destroyed(id, p, dropped)
		return dropped
	}

	s.end = p.Step(s.dir.Opposite())
	s.queue = rest
	r.reseed(s)
	if k < n-1 {
		head := r.create(p.Step(s.dir), oldEnd, s.dir, s.kind, s.speed)
		head.queue = ahead
		r.created(head)
		if r.hooks.OnSplit != nil {
			r.hooks.OnSplit(s.id, head.id)
		}
	}
	r.destroyed(id, p, dropped)
	return dropped
}

func (r *Registry) destroyed(id SegmentID, p Pos, items []uint8) {
	if r.hooks.OnDestroy != nil {
		r.hooks.OnDestroy(id, p, items)
	}
}
