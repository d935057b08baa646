package main

import (
	"fmt"
	"net/http"

	"beltline.ai/internal/sim/world"
)

// metricsHandler writes the minimal Prometheus text exposition format.
func metricsHandler(worldID string, w *world.World, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		fmt.Fprintf(rw, "# HELP beltline_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE beltline_world_tick gauge\n")
		fmt.Fprintf(rw, "beltline_world_tick{world=%q} %d\n", worldID, tick)

		fmt.Fprintf(rw, "# HELP beltline_world_segments Live belt segments.\n")
		fmt.Fprintf(rw, "# TYPE beltline_world_segments gauge\n")
		fmt.Fprintf(rw, "beltline_world_segments{world=%q} %d\n", worldID, m.Segments)

		fmt.Fprintf(rw, "# HELP beltline_world_scheduled Segments registered with the update scheduler.\n")
		fmt.Fprintf(rw, "# TYPE beltline_world_scheduled gauge\n")
		fmt.Fprintf(rw, "beltline_world_scheduled{world=%q} %d\n", worldID, m.Scheduled)

		fmt.Fprintf(rw, "# HELP beltline_world_items Items queued on belts.\n")
		fmt.Fprintf(rw, "# TYPE beltline_world_items gauge\n")
		fmt.Fprintf(rw, "beltline_world_items{world=%q} %d\n", worldID, m.Items)

		fmt.Fprintf(rw, "# HELP beltline_world_blocks Placed non-belt blocks by kind.\n")
		fmt.Fprintf(rw, "# TYPE beltline_world_blocks gauge\n")
		fmt.Fprintf(rw, "beltline_world_blocks{world=%q,kind=%q} %d\n", worldID, "source", m.Sources)
		fmt.Fprintf(rw, "beltline_world_blocks{world=%q,kind=%q} %d\n", worldID, "sink", m.Sinks)

		fmt.Fprintf(rw, "# HELP beltline_world_observers Connected observers.\n")
		fmt.Fprintf(rw, "# TYPE beltline_world_observers gauge\n")
		fmt.Fprintf(rw, "beltline_world_observers{world=%q} %d\n", worldID, m.Observers)

		fmt.Fprintf(rw, "# HELP beltline_items_emitted_total Items emitted by sources.\n")
		fmt.Fprintf(rw, "# TYPE beltline_items_emitted_total counter\n")
		fmt.Fprintf(rw, "beltline_items_emitted_total{world=%q} %d\n", worldID, m.EmittedTotal)

		fmt.Fprintf(rw, "# HELP beltline_items_delivered_total Items accepted by sinks.\n")
		fmt.Fprintf(rw, "# TYPE beltline_items_delivered_total counter\n")
		fmt.Fprintf(rw, "beltline_items_delivered_total{world=%q} %d\n", worldID, m.DeliveredTotal)

		fmt.Fprintf(rw, "# HELP beltline_items_destroyed_total Items lost to belt removal.\n")
		fmt.Fprintf(rw, "# TYPE beltline_items_destroyed_total counter\n")
		fmt.Fprintf(rw, "beltline_items_destroyed_total{world=%q} %d\n", worldID, m.DestroyedTotal)

		fmt.Fprintf(rw, "# HELP beltline_items_handed_off_total Items that left a segment through its exit.\n")
		fmt.Fprintf(rw, "# TYPE beltline_items_handed_off_total counter\n")
		fmt.Fprintf(rw, "beltline_items_handed_off_total{world=%q} %d\n", worldID, m.HandOffTotal)

		fmt.Fprintf(rw, "# HELP beltline_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE beltline_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "beltline_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "edits", m.QueueDepths.Edits)
		fmt.Fprintf(rw, "beltline_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "observer_join", m.QueueDepths.ObserverJoin)
		fmt.Fprintf(rw, "beltline_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "observer_leave", m.QueueDepths.ObserverLeave)

		fmt.Fprintf(rw, "# HELP beltline_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE beltline_world_step_ms gauge\n")
		fmt.Fprintf(rw, "beltline_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

		if idx == nil {
			return
		}
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP beltline_index_queue_depth Current index writer queue depth.\n")
		fmt.Fprintf(rw, "# TYPE beltline_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "beltline_index_queue_depth %d\n", s.QueueDepth)

		fmt.Fprintf(rw, "# HELP beltline_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE beltline_index_dropped_total counter\n")
		fmt.Fprintf(rw, "beltline_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
		fmt.Fprintf(rw, "beltline_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
	}
}
