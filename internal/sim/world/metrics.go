package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Segments  int `json:"segments"`
	Scheduled int `json:"scheduled"`
	Items     int `json:"items"`
	Sources   int `json:"sources"`
	Sinks     int `json:"sinks"`
	Observers int `json:"observers"`

	EmittedTotal   uint64 `json:"emitted_total"`
	DeliveredTotal uint64 `json:"delivered_total"`
	DestroyedTotal uint64 `json:"destroyed_total"`
	// HandOffTotal counts items leaving a segment exit, onto a belt or a block.
	HandOffTotal   uint64 `json:"hand_off_total"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Edits         int `json:"edits"`
	ObserverJoin  int `json:"observer_join"`
	ObserverLeave int `json:"observer_leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, ok := w.metrics.Load().(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(stepDur time.Duration) {
	w.metrics.Store(WorldMetrics{
		Tick:           w.tick.Load(),
		Segments:       w.belts.Len(),
		Scheduled:      w.belts.Scheduler().Len(),
		Items:          w.itemCount(),
		Sources:        len(w.sources),
		Sinks:          len(w.sinks),
		Observers:      len(w.observers),
		EmittedTotal:   w.emitted,
		DeliveredTotal: w.delivered,
		DestroyedTotal: w.destroyed,
		HandOffTotal:   w.handOffs,
		QueueDepths: QueueDepths{
			Edits:         len(w.edits),
			ObserverJoin:  len(w.observerJoin),
			ObserverLeave: len(w.observerLeave),
		},
		StepMS: float64(stepDur.Microseconds()) / 1000.0,
	})
}
