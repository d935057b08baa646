package world

import (
	"os"
	"path/filepath"
	"testing"

	"beltline.ai/internal/sim/catalogs"
	"beltline.ai/internal/sim/world/feature/conveyor/runtime"
)

// testCatalogs has a one-tile-per-tick belt, a source that is ready every
// tick and two sinks.
func testCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("items.json", `[{"id":"ORE"},{"id":"PLATE"}]`)
	write("blocks.json", `[
		{"id":"AIR","kind":"AIR"},
		{"id":"BELT","kind":"BELT","speed":1},
		{"id":"HALF_BELT","kind":"BELT","speed":0.5},
		{"id":"SOURCE","kind":"SOURCE","emit_every_ticks":1,"emit_item":"PLATE"},
		{"id":"SINK","kind":"SINK","accept_every_ticks":1},
		{"id":"SLOW_SINK","kind":"SINK","accept_every_ticks":5}
	]`)
	cats, err := catalogs.Load(dir)
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(WorldConfig{ID: "test", TickRateHz: 200, Width: 32, Height: 32}, testCatalogs(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func mustPlace(t *testing.T, w *World, x, y int, block string, dir runtime.Dir) {
	t.Helper()
	if err := w.PlaceBlock("test", Pos{X: x, Y: y}, block, dir); err != nil {
		t.Fatalf("place %s at (%d,%d): %v", block, x, y, err)
	}
}

// line builds SOURCE at (0,y), BELT on x=1..n and sinkBlock at (n+1,y), all facing +X.
func line(t *testing.T, w *World, y, n int, sinkBlock string) {
	t.Helper()
	mustPlace(t, w, 0, y, "SOURCE", runtime.DirPosX)
	for x := 1; x <= n; x++ {
		mustPlace(t, w, x, y, "BELT", runtime.DirPosX)
	}
	mustPlace(t, w, n+1, y, sinkBlock, runtime.DirPosX)
}

func stepN(w *World, n int) {
	for i := 0; i < n; i++ {
		w.StepOnce(nil)
	}
}

type auditRecorder struct{ entries []AuditEntry }

func (r *auditRecorder) WriteAudit(e AuditEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *auditRecorder) actions(action string) []AuditEntry {
	var out []AuditEntry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type tickRecorder struct{ entries []TickLogEntry }

func (r *tickRecorder) WriteTick(e TickLogEntry) error {
	r.entries = append(r.entries, e)
	return nil
}
