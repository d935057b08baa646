package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"beltline.ai/internal/sim/world/logic/mathx"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`
	// TickDelta scales every belt speed for one tick (1 = nominal).
	TickDelta float64 `yaml:"tick_delta"`

	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// FrameEveryTicks throttles observer frames; 1 sends every tick.
	FrameEveryTicks int `yaml:"frame_every_ticks"`
	// IndexEveryTicks throttles tick rows written to the SQLite index.
	IndexEveryTicks int `yaml:"index_every_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "0.1",
		TickRateHz:      20,
		TickDelta:       1,
		Width:           64,
		Height:          64,
		FrameEveryTicks: 1,
		IndexEveryTicks: 20,
	}
}

// Load reads path over Defaults(). Missing fields keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return errors.New("tick_rate_hz must be > 0")
	case t.TickDelta <= 0:
		return errors.New("tick_delta must be > 0")
	case t.Width <= 0 || t.Height <= 0:
		return fmt.Errorf("grid %dx%d must be positive", t.Width, t.Height)
	case t.FrameEveryTicks <= 0:
		return errors.New("frame_every_ticks must be > 0")
	case t.IndexEveryTicks <= 0:
		return errors.New("index_every_ticks must be > 0")
	}
	return nil
}

// Layout is the initial set of blocks placed before the first tick.
type Layout struct {
	Placements []Placement `yaml:"placements"`
}

// Placement puts Block on At, or on every tile of the straight line At..To
// when To is set.
type Placement struct {
	Block string  `yaml:"block"`
	At    [2]int  `yaml:"at"`
	To    *[2]int `yaml:"to,omitempty"`
	Dir   string  `yaml:"dir"`
}

// Tiles lists the tiles the placement covers, from At to To.
func (p Placement) Tiles() ([][2]int, error) {
	if p.To == nil {
		return [][2]int{p.At}, nil
	}
	dx, dy := p.To[0]-p.At[0], p.To[1]-p.At[1]
	if dx != 0 && dy != 0 {
		return nil, fmt.Errorf("%s %v..%v is not a straight line", p.Block, p.At, *p.To)
	}
	n := max(mathx.AbsInt(dx), mathx.AbsInt(dy))
	sx, sy := mathx.Sign(dx), mathx.Sign(dy)
	out := make([][2]int, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, [2]int{p.At[0] + sx*i, p.At[1] + sy*i})
	}
	return out, nil
}

func LoadLayout(path string) (Layout, error) {
	var l Layout
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("layout.yaml: %w", err)
	}
	for i, p := range l.Placements {
		if p.Block == "" {
			return l, fmt.Errorf("layout.yaml: placement %d: empty block", i)
		}
		if _, err := p.Tiles(); err != nil {
			return l, fmt.Errorf("layout.yaml: placement %d: %w", i, err)
		}
	}
	return l, nil
}
