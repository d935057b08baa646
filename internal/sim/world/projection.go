package world

import (
	"iter"

	"beltline.ai/internal/sim/world/logic/itempos"
)

// ItemPos is a queued item in world space. Tile (x,y) spans [x,x+1)x[y,y+1).
type ItemPos struct {
	Item uint8
	X, Y float64
}

// ItemPositions projects every queued item to world space for frame. Each
// segment is projected at most once per frame, so a second call with the same
// frame yields nothing. A segment whose items were cut short by the consumer
// stays unclaimed for frame.
func (w *World) ItemPositions(frame uint64) iter.Seq[ItemPos] {
	return func(yield func(ItemPos) bool) {
		for _, s := range w.belts.Segments() {
			if s.ItemCount() == 0 || !s.MarkDrawn(frame) {
				continue
			}
			v := s.Dir().Vec()
			end := s.End()
			// Exit edge: center of the end tile pushed half a tile forward.
			ex := float64(end.X) + 0.5 + 0.5*float64(v.X)
			ey := float64(end.Y) + 0.5 + 0.5*float64(v.Y)
			for item, d := range s.Items() {
				back := float64(d) / itempos.Unit
				if !yield(ItemPos{Item: item, X: ex - back*float64(v.X), Y: ey - back*float64(v.Y)}) {
					s.ReleaseDrawn(frame)
					return
				}
			}
		}
	}
}
