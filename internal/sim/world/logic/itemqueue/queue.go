// Package itemqueue stores the items riding a conveyor segment as a
// delta-encoded sequence: each entry carries its gap to the entry ahead of it,
// and the head entry's gap is its distance to the exit.
//
// Entries are ordered tail to head: index 0 is farthest from the exit, the
// last index is the next item to leave. Summing the gaps from any entry to the
// head yields that entry's distance to the exit in itempos units; every
// mutation below keeps that sum intact for items it does not remove.
package itemqueue

import (
	"fmt"
	"iter"
	"slices"

	"beltline.ai/internal/sim/world/logic/itempos"
)

type Queue struct {
	words []itempos.Word
}

func (q *Queue) Len() int              { return len(q.words) }
func (q *Queue) Empty() bool           { return len(q.words) == 0 }
func (q *Queue) Clone() Queue          { return Queue{words: slices.Clone(q.words)} }
func (q *Queue) Words() []itempos.Word { return slices.Clone(q.words) }

func (q *Queue) At(i int) itempos.Word { return q.words[i] }

// Head returns the entry nearest the exit.
func (q *Queue) Head() itempos.Word {
	if len(q.words) == 0 {
		panic("itemqueue: Head on empty queue")
	}
	return q.words[len(q.words)-1]
}

func (q *Queue) SetGap(i, gap int) {
	q.words[i] = q.words[i].WithGap(gap)
}

// Total is the distance from the exit to the tail-most entry.
func (q *Queue) Total() int {
	sum := 0
	for _, w := range q.words {
		sum += w.Gap()
	}
	return sum
}

// InsertByDistance places item d units from the exit, splitting the gap of
// whichever entry it lands in front of.
func (q *Queue) InsertByDistance(d int, item uint8) {
	if d < 0 {
		panic(fmt.Sprintf("itemqueue: negative insert distance %d", d))
	}
	total, before := 0, 0
	for i := len(q.words) - 1; i >= 0; i-- {
		w := q.words[i]
		total += w.Gap()
		if d < total {
			gap := d - before
			q.words = slices.Insert(q.words, i+1, itempos.Pack(item, gap))
			q.words[i] = w.WithGap(w.Gap() - gap)
			return
		}
		before = total
	}
	q.words = slices.Insert(q.words, 0, itempos.Pack(item, d-total))
}

// PopHead removes the head entry. The head must have reached the exit.
func (q *Queue) PopHead() uint8 {
	n := len(q.words)
	if n == 0 {
		panic("itemqueue: PopHead on empty queue")
	}
	w := q.words[n-1]
	if w.Gap() != 0 {
		panic(fmt.Sprintf("itemqueue: PopHead with head gap %d", w.Gap()))
	}
	q.words = q.words[:n-1]
	return w.Item()
}

// Concat joins other, the queue of the run directly ahead, onto the head side
// of q. lengthOffset is the free distance between other's tail-most entry and
// the boundary between the two runs; it is added to q's previous head so that
// head keeps its spacing across the join.
func (q *Queue) Concat(other Queue, lengthOffset int) {
	boundary := len(q.words) - 1
	q.words = append(q.words, other.words...)
	if boundary >= 0 {
		w := q.words[boundary]
		q.words[boundary] = w.WithGap(w.Gap() + lengthOffset)
	}
}

// Cut partitions the queue by distance to the exit. Entries at or within from
// stay in q untouched. Entries in (from, to] are removed and returned as
// dropped, tail first. Entries beyond to move into rest, rebased so that
// distance to becomes rest's exit. A negative from drops entries at the exit.
func (q *Queue) Cut(from, to int) (rest Queue, dropped []uint8) {
	if from > to {
		panic(fmt.Sprintf("itemqueue: Cut(%d, %d) with from > to", from, to))
	}
	n := len(q.words)
	dist := make([]int, n)
	sum := 0
	for i := n - 1; i >= 0; i-- {
		sum += q.words[i].Gap()
		dist[i] = sum
	}

	keepFrom := n
	for keepFrom > 0 && dist[keepFrom-1] <= from {
		keepFrom--
	}
	restEnd := 0
	for restEnd < n && dist[restEnd] > to {
		restEnd++
	}

	rest = Queue{words: slices.Clone(q.words[:restEnd])}
	if restEnd > 0 {
		rest.words[restEnd-1] = rest.words[restEnd-1].WithGap(dist[restEnd-1] - to)
	}
	for _, w := range q.words[restEnd:keepFrom] {
		dropped = append(dropped, w.Item())
	}
	q.words = slices.Clone(q.words[keepFrom:])
	return rest, dropped
}

// All yields (item, distance to exit) from the head backward.
func (q *Queue) All() iter.Seq2[uint8, int] {
	return func(yield func(uint8, int) bool) {
		sum := 0
		for i := len(q.words) - 1; i >= 0; i-- {
			w := q.words[i]
			sum += w.Gap()
			if !yield(w.Item(), sum) {
				return
			}
		}
	}
}

// Distances returns every entry's distance to the exit, tail first.
func (q *Queue) Distances() []int {
	out := make([]int, len(q.words))
	sum := 0
	for i := len(q.words) - 1; i >= 0; i-- {
		sum += q.words[i].Gap()
		out[i] = sum
	}
	return out
}
