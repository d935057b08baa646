package world

import (
	"fmt"

	"beltline.ai/internal/sim/tuning"
	"beltline.ai/internal/sim/world/feature/conveyor/runtime"
)

// ApplyLayout places every block of l in order before the world starts
// ticking. It stops at the first placement that fails.
func (w *World) ApplyLayout(actor string, l tuning.Layout) error {
	for i, pl := range l.Placements {
		dir, ok := runtime.ParseDir(pl.Dir)
		if !ok {
			return fmt.Errorf("layout placement %d: %w: %q", i, ErrBadDir, pl.Dir)
		}
		tiles, err := pl.Tiles()
		if err != nil {
			return fmt.Errorf("layout placement %d: %w", i, err)
		}
		for _, t := range tiles {
			if err := w.PlaceBlock(actor, Pos{X: t[0], Y: t[1]}, pl.Block, dir); err != nil {
				return fmt.Errorf("layout placement %d: %w", i, err)
			}
		}
	}
	w.refreshLayer()
	w.tickAudits = nil
	w.tickCells = nil
	return nil
}
