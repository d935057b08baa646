package world

import (
	"fmt"

	"beltline.ai/internal/observerproto"
	"beltline.ai/internal/sim/catalogs"
	"beltline.ai/internal/sim/encoding"
	"beltline.ai/internal/sim/world/feature/conveyor/runtime"
	"beltline.ai/internal/sim/world/logic/itempos"
)

// PlaceBlock puts block on the empty tile p facing dir. Belts join the
// segment registry, sources and sinks start their timers.
func (w *World) PlaceBlock(actor string, p Pos, block string, dir runtime.Dir) error {
	if !w.inBounds(p) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, p)
	}
	if !dir.Valid() {
		return fmt.Errorf("%w: %d", ErrBadDir, dir)
	}
	id, ok := w.catalogs.BlockID(block)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBlock, block)
	}
	def, _ := w.catalogs.BlockDef(id)
	if def.Kind == catalogs.KindAir {
		return fmt.Errorf("%w: place AIR, use remove", ErrUnknownBlock)
	}
	if cur, ok := w.tiles[p]; ok {
		return fmt.Errorf("%w: %v holds %s", ErrOccupied, p, w.blockName(cur.Block))
	}

	w.actor = actor
	defer func() { w.actor = "" }()

	w.tiles[p] = Tile{Block: id, Dir: dir}
	switch def.Kind {
	case catalogs.KindBelt:
		w.belts.Place(p, dir, id, beltSpeed(def))
	case catalogs.KindSource:
		item, _ := w.catalogs.ItemCode(def.EmitItem)
		w.sources[p] = &source{item: item, every: def.EmitEveryTicks}
	case catalogs.KindSink:
		w.sinks[p] = &sink{every: def.AcceptEveryTicks}
	}
	w.cellChanged(p)
	w.audit("PLACE_BLOCK", p, 0, id, nil, "")
	return nil
}

// RemoveBlock clears p back to AIR and returns the items destroyed with it.
func (w *World) RemoveBlock(actor string, p Pos) ([]uint8, error) {
	if !w.inBounds(p) {
		return nil, fmt.Errorf("%w: %v", ErrOutOfBounds, p)
	}
	cur, ok := w.tiles[p]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrEmptyTile, p)
	}

	w.actor = actor
	defer func() { w.actor = "" }()

	var dropped []uint8
	if w.belts.IsBelt(p) {
		dropped = w.belts.Remove(p)
	}
	delete(w.sources, p)
	delete(w.sinks, p)
	delete(w.tiles, p)
	w.cellChanged(p)
	w.audit("REMOVE_BLOCK", p, cur.Block, 0, nil, "")
	return dropped, nil
}

// beltSpeed converts a tiles-per-tick rating to units per tick.
func beltSpeed(def catalogs.BlockDef) int {
	return max(1, int(def.Speed*float64(itempos.Unit)))
}

// Accept implements runtime.Env for non-belt tiles. Only sinks take items,
// at most one per accept_every_ticks.
func (w *World) Accept(p Pos, from Pos, item uint8) bool {
	k := w.sinks[p]
	if k == nil || k.wait > 0 {
		return false
	}
	k.wait = k.every
	k.received++
	w.delivered++
	w.tickDeliv++
	return true
}

// stepSources emits one item per ready source onto the belt it faces. A
// source whose belt has no room keeps the item and retries next tick.
func (w *World) stepSources() {
	for _, p := range runtime.SortedPositions(w.sources) {
		src := w.sources[p]
		if src.wait > 0 {
			src.wait--
			continue
		}
		to := p.Step(w.tiles[p].Dir)
		if w.belts.Offer(to, p, src.item) {
			src.emitted++
			w.emitted++
			src.wait = src.every - 1
		}
	}
}

func (w *World) stepSinks() {
	for _, k := range w.sinks {
		if k.wait > 0 {
			k.wait--
		}
	}
}

func (w *World) cellChanged(p Pos) {
	w.tickCells = append(w.tickCells, observerproto.CellPatch{X: p.X, Y: p.Y, Cell: w.cell(p.X, p.Y)})
}

func (w *World) cell(x, y int) uint16 {
	t := w.tiles[Pos{X: x, Y: y}]
	return encoding.PackCell(t.Block, uint8(t.Dir))
}

// refreshLayer re-encodes the block layer served to bootstrapping observers.
func (w *World) refreshLayer() {
	data := encoding.EncodeLayer(w.cfg.Width, w.cfg.Height, w.cell)
	w.layer.Store(&observerproto.Layer{Encoding: observerproto.LayerEncoding, Data: data})
}
