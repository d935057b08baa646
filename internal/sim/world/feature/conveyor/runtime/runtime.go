package runtime

import (
	"fmt"
	"sort"
)

// Pos is a grid tile coordinate.
type Pos struct {
	X int
	Y int
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Step returns the neighbor of p in direction d.
func (p Pos) Step(d Dir) Pos {
	v := d.Vec()
	return Pos{X: p.X + v.X, Y: p.Y + v.Y}
}

// Dir is a cardinal facing: 0=+X, 1=+Y, 2=-X, 3=-Y.
type Dir uint8

const (
	DirPosX Dir = iota
	DirPosY
	DirNegX
	DirNegY
)

var dirVecs = [4]Pos{{X: 1}, {Y: 1}, {X: -1}, {Y: -1}}

func (d Dir) Vec() Pos       { return dirVecs[d&3] }
func (d Dir) Opposite() Dir  { return (d + 2) & 3 }
func (d Dir) Valid() bool    { return d < 4 }
func (d Dir) Vertical() bool { return d&1 == 1 }

func (d Dir) String() string {
	switch d {
	case DirPosX:
		return "+X"
	case DirPosY:
		return "+Y"
	case DirNegX:
		return "-X"
	case DirNegY:
		return "-Y"
	default:
		return "?"
	}
}

// ParseDir accepts the tags produced by Dir.String.
func ParseDir(s string) (Dir, bool) {
	switch s {
	case "+X":
		return DirPosX, true
	case "+Y":
		return DirPosY, true
	case "-X":
		return DirNegX, true
	case "-Y":
		return DirNegY, true
	default:
		return 0, false
	}
}

func SortedPositions[T any](m map[Pos]T) []Pos {
	if len(m) == 0 {
		return nil
	}
	out := make([]Pos, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}
