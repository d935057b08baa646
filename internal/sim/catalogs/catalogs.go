package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// MaxItems is the size of the item code space carried by a queue word.
const MaxItems = 256

type Catalogs struct {
	Blocks BlockCatalog
	Items  ItemCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

// Block kinds.
const (
	KindAir    = "AIR"
	KindBelt   = "BELT"
	KindSource = "SOURCE"
	KindSink   = "SINK"
)

type BlockDef struct {
	ID   string `json:"id"`
	Kind string `json:"kind"` // "AIR","BELT","SOURCE","SINK"

	// Speed is the belt rating in tiles per tick; the runtime speed is
	// Speed * itempos.Unit scaled by the tick delta.
	Speed float64 `json:"speed,omitempty"`

	EmitEveryTicks   int    `json:"emit_every_ticks,omitempty"`
	EmitItem         string `json:"emit_item,omitempty"`
	AcceptEveryTicks int    `json:"accept_every_ticks,omitempty"`
}

func (d BlockDef) IsBelt() bool { return d.Kind == KindBelt }

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint8
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID    string `json:"id"`
	Color string `json:"color,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks, &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

// BlockID returns the palette id of a block, or false if unknown.
func (c *Catalogs) BlockID(name string) (uint16, bool) {
	id, ok := c.Blocks.Index[name]
	return id, ok
}

// BlockDef returns the definition for a palette id.
func (c *Catalogs) BlockDef(id uint16) (BlockDef, bool) {
	if int(id) >= len(c.Blocks.Palette) {
		return BlockDef{}, false
	}
	d, ok := c.Blocks.Defs[c.Blocks.Palette[id]]
	return d, ok
}

func (c *Catalogs) ItemCode(name string) (uint8, bool) {
	code, ok := c.Items.Index[name]
	return code, ok
}

func (c *Catalogs) ItemName(code uint8) string {
	if int(code) >= len(c.Items.Palette) {
		return fmt.Sprintf("item#%d", code)
	}
	return c.Items.Palette[code]
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog, items *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if err := validateBlock(d, items); err != nil {
			return fmt.Errorf("blocks.json: %s: %w", d.ID, err)
		}
		out.Defs[d.ID] = d
	}

	ids := sortedKeys(out.Defs)

	// Ensure AIR exists and is palette id 0.
	if d, ok := out.Defs["AIR"]; !ok || d.Kind != KindAir {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func validateBlock(d BlockDef, items *ItemCatalog) error {
	switch d.Kind {
	case KindAir:
	case KindBelt:
		if d.Speed <= 0 {
			return fmt.Errorf("belt speed must be > 0")
		}
	case KindSource:
		if d.EmitEveryTicks <= 0 {
			return fmt.Errorf("emit_every_ticks must be > 0")
		}
		if _, ok := items.Index[d.EmitItem]; !ok {
			return fmt.Errorf("unknown emit_item %q", d.EmitItem)
		}
	case KindSink:
		if d.AcceptEveryTicks <= 0 {
			return fmt.Errorf("accept_every_ticks must be > 0")
		}
	default:
		return fmt.Errorf("unknown kind %q", d.Kind)
	}
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		out.Defs[d.ID] = d
	}
	if len(out.Defs) > MaxItems {
		return fmt.Errorf("items.json: %d items, at most %d fit an item code", len(out.Defs), MaxItems)
	}

	ids := sortedKeys(out.Defs)
	out.Palette = ids
	out.Index = make(map[string]uint8, len(ids))
	for i, id := range ids {
		out.Index[id] = uint8(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
