package itempos

import "fmt"

// Unit is the number of distance units per tile length.
const Unit = 3000

// MinGap is the closest two queued items may sit once a stall has spaced them out.
const MinGap = Unit / 3

// MaxGap is the largest gap a Word can carry (24 bits).
const MaxGap = 1<<24 - 1

// Word packs an item code (high 8 bits) and its gap to the next item toward
// the exit (low 24 bits).
type Word uint32

func Pack(item uint8, gap int) Word {
	if gap < 0 || gap > MaxGap {
		panic(fmt.Sprintf("itempos: gap %d out of range [0,%d]", gap, MaxGap))
	}
	return Word(uint32(item)<<24 | uint32(gap))
}

func Unpack(w Word) (item uint8, gap int) { return w.Item(), w.Gap() }

func (w Word) Item() uint8 { return uint8(w >> 24) }
func (w Word) Gap() int    { return int(w & MaxGap) }

// WithGap returns w carrying the same item and a new gap.
func (w Word) WithGap(gap int) Word { return Pack(w.Item(), gap) }
