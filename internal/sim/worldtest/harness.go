package worldtest

import (
	"path/filepath"
	"runtime"
	"testing"

	"beltline.ai/internal/sim/catalogs"
	"beltline.ai/internal/sim/tuning"
	world "beltline.ai/internal/sim/world"
	belt "beltline.ai/internal/sim/world/feature/conveyor/runtime"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Place()/Remove() issue edits via StepOnce()
// - Step()/StepFor() advance the world with no edits
// - tick and audit entries are recorded through the logger hooks
//
// It intentionally avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	Ticks  []world.TickLogEntry
	Audits []world.AuditEntry

	digests []string
}

func NewHarness(t *testing.T, cfg world.WorldConfig, cats *catalogs.Catalogs) *Harness {
	t.Helper()

	w, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	h := &Harness{T: t, Cats: cats, W: w}
	w.SetTickLogger(tickFunc(func(e world.TickLogEntry) error {
		h.Ticks = append(h.Ticks, e)
		return nil
	}))
	w.SetAuditLogger(auditFunc(func(e world.AuditEntry) error {
		h.Audits = append(h.Audits, e)
		return nil
	}))
	return h
}

// NewLayoutHarness builds a world from the repo configs with layout.yaml applied.
func NewLayoutHarness(t *testing.T) *Harness {
	t.Helper()
	dir := ConfigDir(t)
	cats, err := catalogs.Load(dir)
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tune, err := tuning.Load(filepath.Join(dir, "tuning.yaml"))
	if err != nil {
		t.Fatalf("load tuning: %v", err)
	}
	layout, err := tuning.LoadLayout(filepath.Join(dir, "layout.yaml"))
	if err != nil {
		t.Fatalf("load layout: %v", err)
	}
	h := NewHarness(t, world.WorldConfig{
		ID:         "test",
		TickRateHz: tune.TickRateHz,
		TickDelta:  tune.TickDelta,
		Width:      tune.Width,
		Height:     tune.Height,
	}, cats)
	if err := h.W.ApplyLayout("layout", layout); err != nil {
		t.Fatalf("apply layout: %v", err)
	}
	return h
}

// ConfigDir locates the repo configs/ directory from this source file.
func ConfigDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime.Caller failed")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "configs")
}

func (h *Harness) Place(x, y int, block string, dir belt.Dir) error {
	h.T.Helper()
	return h.edit(world.EditRequest{Actor: "harness", Pos: world.Pos{X: x, Y: y}, Block: block, Dir: dir})
}

func (h *Harness) MustPlace(x, y int, block string, dir belt.Dir) {
	h.T.Helper()
	if err := h.Place(x, y, block, dir); err != nil {
		h.T.Fatalf("place %s at (%d,%d): %v", block, x, y, err)
	}
}

func (h *Harness) Remove(x, y int) error {
	h.T.Helper()
	return h.edit(world.EditRequest{Actor: "harness", Remove: true, Pos: world.Pos{X: x, Y: y}})
}

func (h *Harness) edit(req world.EditRequest) error {
	req.Resp = make(chan error, 1)
	h.stepOnce([]world.EditRequest{req})
	return <-req.Resp
}

func (h *Harness) Step() { h.stepOnce(nil) }

func (h *Harness) StepFor(n int) {
	for i := 0; i < n; i++ {
		h.stepOnce(nil)
	}
}

func (h *Harness) stepOnce(edits []world.EditRequest) {
	_, d := h.W.StepOnce(edits)
	h.digests = append(h.digests, d)
}

// Digests returns the state digest recorded after each step.
func (h *Harness) Digests() []string { return append([]string(nil), h.digests...) }

func (h *Harness) Metrics() world.WorldMetrics { return h.W.Metrics() }

// AuditsOf returns recorded audits with the given action.
func (h *Harness) AuditsOf(action string) []world.AuditEntry {
	var out []world.AuditEntry
	for _, a := range h.Audits {
		if a.Action == action {
			out = append(out, a)
		}
	}
	return out
}

// Conserved reports whether every emitted item is delivered, destroyed or still on a belt.
func (h *Harness) Conserved() bool {
	m := h.W.Metrics()
	return m.EmittedTotal == m.DeliveredTotal+m.DestroyedTotal+uint64(m.Items)
}

type tickFunc func(world.TickLogEntry) error

func (f tickFunc) WriteTick(e world.TickLogEntry) error { return f(e) }

type auditFunc func(world.AuditEntry) error

func (f auditFunc) WriteAudit(e world.AuditEntry) error { return f(e) }
