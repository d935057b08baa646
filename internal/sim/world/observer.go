package world

import (
	"encoding/json"
	"sort"

	"beltline.ai/internal/observerproto"
	"beltline.ai/internal/sim/world/logic/itempos"
)

// ObserverJoinRequest registers a read-only observer session that receives
// FRAME messages on Out. Re-joining with the same SessionID replaces the
// previous settings.
type ObserverJoinRequest struct {
	SessionID  string
	Out        chan []byte
	FrameEvery int
	MaxItems   int
}

type observerClient struct {
	id         string
	out        chan []byte
	frameEvery int
	maxItems   int

	// Patches and audits since the last frame sent to this observer.
	cells  []observerproto.CellPatch
	audits []observerproto.AuditEntry
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	every := req.FrameEvery
	if every <= 0 {
		every = w.cfg.FrameEveryTicks
	}
	maxItems := req.MaxItems
	if maxItems <= 0 || maxItems > w.cfg.MaxFrameItems {
		maxItems = w.cfg.MaxFrameItems
	}
	if old := w.observers[req.SessionID]; old != nil {
		if old.out == req.Out {
			// Settings update; keep changes queued for the next frame.
			old.frameEvery = every
			old.maxItems = maxItems
			return
		}
		close(old.out)
	}
	w.observers[req.SessionID] = &observerClient{
		id:         req.SessionID,
		out:        req.Out,
		frameEvery: every,
		maxItems:   maxItems,
	}
}

func (w *World) handleObserverLeave(id string) {
	c := w.observers[id]
	if c == nil {
		return
	}
	delete(w.observers, id)
	close(c.out)
}

// broadcastFrame queues this tick's changes on every observer and sends a
// FRAME to those whose cadence is due. Item positions are projected once.
func (w *World) broadcastFrame(nowTick uint64) {
	if len(w.observers) == 0 {
		return
	}
	audits := make([]observerproto.AuditEntry, len(w.tickAudits))
	for i, a := range w.tickAudits {
		audits[i] = observerproto.AuditEntry(a)
	}

	var items []observerproto.ItemPos
	var segs []observerproto.SegmentState
	projected := false

	for _, id := range sortedObserverIDs(w.observers) {
		c := w.observers[id]
		c.cells = append(c.cells, w.tickCells...)
		c.audits = append(c.audits, audits...)
		if nowTick%uint64(c.frameEvery) != 0 {
			continue
		}
		if !projected {
			items, segs = w.projectFrame(nowTick)
			projected = true
		}
		msg := observerproto.FrameMsg{
			Type:            "FRAME",
			ProtocolVersion: observerproto.Version,
			Tick:            nowTick,
			Items:           items,
			Segments:        segs,
			Cells:           c.cells,
			Audits:          c.audits,
			Delivered:       w.delivered,
		}
		if len(msg.Items) > c.maxItems {
			msg.Items = msg.Items[:c.maxItems]
			msg.Truncated = true
		}
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		sendLatest(c.out, b)
		c.cells = nil
		c.audits = nil
	}
}

func (w *World) projectFrame(frame uint64) ([]observerproto.ItemPos, []observerproto.SegmentState) {
	items := make([]observerproto.ItemPos, 0, 64)
	for p := range w.ItemPositions(frame) {
		items = append(items, observerproto.ItemPos{Item: p.Item, X: p.X, Y: p.Y})
	}
	segs := make([]observerproto.SegmentState, 0, w.belts.Len())
	for _, s := range w.belts.Segments() {
		start, end := s.Start(), s.End()
		segs = append(segs, observerproto.SegmentState{
			ID:    uint32(s.ID()),
			Start: [2]int{start.X, start.Y},
			End:   [2]int{end.X, end.Y},
			Dir:   s.Dir().String(),
			Kind:  w.blockName(s.Kind()),
			Items: s.ItemCount(),
			Stall: s.StallIndex(),
		})
	}
	return items, segs
}

// Bootstrap describes the world for a newly connecting observer. It is safe
// to call from any goroutine.
func (w *World) Bootstrap() observerproto.BootstrapResponse {
	var layer observerproto.Layer
	if l := w.layer.Load(); l != nil {
		layer = *l
	}
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		WorldID:         w.cfg.ID,
		Tick:            w.tick.Load(),
		WorldParams: observerproto.WorldParams{
			TickRateHz: w.cfg.TickRateHz,
			TickDelta:  w.cfg.TickDelta,
			Width:      w.cfg.Width,
			Height:     w.cfg.Height,
			Unit:       itempos.Unit,
		},
		BlockPalette: w.catalogs.Blocks.Palette,
		ItemPalette:  w.catalogs.Items.Palette,
		Layer:        layer,
	}
}

func sortedObserverIDs(m map[string]*observerClient) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
