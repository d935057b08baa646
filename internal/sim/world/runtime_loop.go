package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingEdits []EditRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.edits:
			pendingEdits = append(pendingEdits, req)
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-ticker.C:
			w.step(pendingEdits)
			pendingEdits = pendingEdits[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(edits []EditRequest) (tick uint64, digest string) {
	tick = w.tick.Load()
	digest = w.step(edits)
	return tick, digest
}

// step runs one tick: edits, sources, belts, sinks, then logs and observers.
// It returns the digest of the state at the end of the tick.
func (w *World) step(edits []EditRequest) string {
	start := time.Now()
	nowTick := w.tick.Load()

	for _, req := range edits {
		w.applyEdit(req)
	}
	w.stepSources()
	w.belts.Tick(w.cfg.TickDelta)
	w.stepSinks()

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:      nowTick,
			Edits:     w.tickEdits,
			Delivered: w.tickDeliv,
			Items:     w.itemCount(),
			Segments:  w.belts.Len(),
			Digest:    digest,
		})
	}
	if len(w.tickCells) > 0 {
		w.refreshLayer()
	}
	w.broadcastFrame(nowTick)

	w.tickAudits = nil
	w.tickCells = nil
	w.tickEdits = nil
	w.tickDeliv = 0

	w.tick.Add(1)
	w.publishMetrics(time.Since(start))
	return digest
}

func (w *World) applyEdit(req EditRequest) {
	rec := RecordedEdit{Actor: req.Actor, Pos: [2]int{req.Pos.X, req.Pos.Y}}
	var err error
	if req.Remove {
		rec.Op = "REMOVE"
		_, err = w.RemoveBlock(req.Actor, req.Pos)
	} else {
		rec.Op = "PLACE"
		rec.Block = req.Block
		rec.Dir = req.Dir.String()
		err = w.PlaceBlock(req.Actor, req.Pos, req.Block, req.Dir)
	}
	if err != nil {
		rec.Error = err.Error()
	}
	w.tickEdits = append(w.tickEdits, rec)
	if req.Resp != nil {
		select {
		case req.Resp <- err:
		default:
		}
	}
}

func (w *World) itemCount() int {
	n := 0
	for _, s := range w.belts.Segments() {
		n += s.ItemCount()
	}
	return n
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
