package world

type WorldConfig struct {
	ID         string
	TickRateHz int
	// TickDelta scales belt speeds for one tick.
	TickDelta float64

	// Width and Height bound the grid to [0,Width)x[0,Height).
	Width  int
	Height int

	// Observer defaults; a subscription may lower MaxFrameItems.
	FrameEveryTicks int
	MaxFrameItems   int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.TickDelta <= 0 {
		c.TickDelta = 1
	}
	if c.Width <= 0 {
		c.Width = 64
	}
	if c.Height <= 0 {
		c.Height = 64
	}
	if c.FrameEveryTicks <= 0 {
		c.FrameEveryTicks = 1
	}
	if c.MaxFrameItems <= 0 {
		c.MaxFrameItems = 4096
	}
}
