package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// LayerEncoding names the block layer encoding used in bootstrap responses:
// row-major cells of (palette_id<<2 | dir), run-length encoded as uvarint
// pairs, base64.
const LayerEncoding = "PAL14_DIR2_RLE"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// FrameEvery sends one FRAME per N ticks (>= 1).
	FrameEvery int `json:"frame_every"`
	// MaxItems caps projected item positions per frame; 0 means server default.
	MaxItems int `json:"max_items,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	BlockPalette    []string    `json:"block_palette"`
	ItemPalette     []string    `json:"item_palette"`
	Layer           Layer       `json:"layer"`
}

type WorldParams struct {
	TickRateHz int     `json:"tick_rate_hz"`
	TickDelta  float64 `json:"tick_delta"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	// Unit is the number of position units per tile.
	Unit int `json:"unit"`
}

type Layer struct {
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

// Server -> Client. Sent every FrameEvery ticks.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Items     []ItemPos      `json:"items"`
	Truncated bool           `json:"truncated,omitempty"`
	Segments  []SegmentState `json:"segments"`
	Cells     []CellPatch    `json:"cells,omitempty"`
	Audits    []AuditEntry   `json:"audits,omitempty"`

	Delivered uint64 `json:"delivered"`
}

// ItemPos is a queued item in world space; tile (x,y) spans [x,x+1)x[y,y+1).
type ItemPos struct {
	Item uint8   `json:"item"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type SegmentState struct {
	ID    uint32 `json:"id"`
	Start [2]int `json:"start"`
	End   [2]int `json:"end"`
	Dir   string `json:"dir"`
	Kind  string `json:"kind"`
	Items int    `json:"items"`
	Stall int    `json:"stall"`
}

// CellPatch replaces one layer cell.
type CellPatch struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Cell uint16 `json:"cell"`
}

type AuditEntry struct {
	Tick   uint64   `json:"tick"`
	Actor  string   `json:"actor"`
	Action string   `json:"action"`
	Pos    [2]int   `json:"pos"`
	From   uint16   `json:"from"`
	To     uint16   `json:"to"`
	Items  []string `json:"items,omitempty"`
	Reason string   `json:"reason,omitempty"`
}
