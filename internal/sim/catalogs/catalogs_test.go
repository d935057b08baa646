package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_RepoConfigs(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Blocks.Palette[0] != "AIR" {
		t.Fatalf("palette[0]=%q want AIR", c.Blocks.Palette[0])
	}
	for _, id := range []string{"BELT", "FAST_BELT", "SINK"} {
		if _, ok := c.BlockID(id); !ok {
			t.Fatalf("missing block %s", id)
		}
	}
	belt, _ := c.BlockID("BELT")
	fast, _ := c.BlockID("FAST_BELT")
	bd, _ := c.BlockDef(belt)
	fd, _ := c.BlockDef(fast)
	if !bd.IsBelt() || !fd.IsBelt() || fd.Speed <= bd.Speed {
		t.Fatalf("belt speeds: BELT=%v FAST_BELT=%v", bd.Speed, fd.Speed)
	}
	if len(c.Blocks.PaletteDigest) != 64 || len(c.Items.DefsDigest) != 64 {
		t.Fatalf("digests not sha256 hex")
	}
}

func TestLoad_ItemPaletteSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "items.json", `[{"id":"ZINC"},{"id":"ASH"},{"id":"MUD"}]`)
	writeFile(t, dir, "blocks.json", `[{"id":"AIR","kind":"AIR"}]`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"ASH", "MUD", "ZINC"}
	for i, id := range want {
		if c.Items.Palette[i] != id || c.Items.Index[id] != uint8(i) {
			t.Fatalf("palette=%v index=%v", c.Items.Palette, c.Items.Index)
		}
	}
	if code, _ := c.ItemCode("MUD"); c.ItemName(code) != "MUD" {
		t.Fatalf("ItemName(ItemCode(MUD))=%q", c.ItemName(code))
	}
	if got := c.ItemName(200); got != "item#200" {
		t.Fatalf("ItemName(200)=%q", got)
	}
}

func TestLoad_Rejects(t *testing.T) {
	many := make([]string, MaxItems+1)
	for i := range many {
		many[i] = `{"id":"I` + strings.Repeat("x", i) + `"}`
	}
	cases := []struct {
		name   string
		items  string
		blocks string
		want   string
	}{
		{"no air", `[{"id":"A"}]`, `[{"id":"BELT","kind":"BELT","speed":1}]`, "missing AIR"},
		{"belt speed", `[{"id":"A"}]`, `[{"id":"AIR","kind":"AIR"},{"id":"BELT","kind":"BELT"}]`, "speed"},
		{"source item", `[{"id":"A"}]`, `[{"id":"AIR","kind":"AIR"},{"id":"S","kind":"SOURCE","emit_every_ticks":1,"emit_item":"B"}]`, "emit_item"},
		{"sink rate", `[{"id":"A"}]`, `[{"id":"AIR","kind":"AIR"},{"id":"K","kind":"SINK"}]`, "accept_every_ticks"},
		{"kind", `[{"id":"A"}]`, `[{"id":"AIR","kind":"AIR"},{"id":"X","kind":"PIPE"}]`, "unknown kind"},
		{"too many items", "[" + strings.Join(many, ",") + "]", `[{"id":"AIR","kind":"AIR"}]`, "at most"},
		{"bad json", `[{"id":`, `[]`, "items.json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "items.json", tc.items)
			writeFile(t, dir, "blocks.json", tc.blocks)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want containing %q", err, tc.want)
			}
		})
	}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
