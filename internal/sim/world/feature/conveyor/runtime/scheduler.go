package runtime

import "sort"

// Scheduler is the set of segments driven each tick, keyed by segment id and
// remembering the seed tile each one is registered under.
type Scheduler struct {
	seeds map[SegmentID]Pos
}

func newScheduler() Scheduler {
	return Scheduler{seeds: map[SegmentID]Pos{}}
}

// Register adds id or moves it to a new seed tile.
func (s *Scheduler) Register(id SegmentID, seed Pos) { s.seeds[id] = seed }

func (s *Scheduler) Deregister(id SegmentID) { delete(s.seeds, id) }

func (s *Scheduler) Seed(id SegmentID) (Pos, bool) {
	p, ok := s.seeds[id]
	return p, ok
}

func (s *Scheduler) Len() int { return len(s.seeds) }

// Active returns the scheduled ids in ascending order.
func (s *Scheduler) Active() []SegmentID {
	out := make([]SegmentID, 0, len(s.seeds))
	for id := range s.seeds {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
