package world

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"beltline.ai/internal/observerproto"
	"beltline.ai/internal/sim/catalogs"
	"beltline.ai/internal/sim/world/feature/conveyor/runtime"
)

type Pos = runtime.Pos

var (
	ErrOutOfBounds  = errors.New("out of bounds")
	ErrOccupied     = errors.New("tile occupied")
	ErrEmptyTile    = errors.New("tile empty")
	ErrUnknownBlock = errors.New("unknown block")
	ErrBadDir       = errors.New("bad direction")
)

// Tile is one grid cell. The zero Tile is AIR facing +X.
type Tile struct {
	Block uint16
	Dir   runtime.Dir
}

// EditRequest places or removes one block at the next tick boundary. Resp,
// when set, receives the outcome and should be buffered.
type EditRequest struct {
	Actor  string
	Remove bool
	Pos    Pos
	Block  string
	Dir    runtime.Dir
	Resp   chan error
}

type source struct {
	item  uint8
	every int
	wait  int
	// emitted counts items handed to the facing belt.
	emitted uint64
}

type sink struct {
	every    int
	wait     int
	received uint64
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs

	tick atomic.Uint64

	tiles   map[Pos]Tile
	belts   *runtime.Registry
	sources map[Pos]*source
	sinks   map[Pos]*sink

	emitted   uint64
	delivered uint64
	destroyed uint64
	handOffs  uint64

	// actor is attributed to audits raised while an edit is applied.
	actor      string
	tickAudits []AuditEntry
	tickCells  []observerproto.CellPatch
	tickEdits  []RecordedEdit
	tickDeliv  uint64

	edits         chan EditRequest
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stop          chan struct{}
	stopOnce      sync.Once

	observers map[string]*observerClient

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	metrics atomic.Value // WorldMetrics
	layer   atomic.Pointer[observerproto.Layer]
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick      uint64         `json:"tick"`
	Edits     []RecordedEdit `json:"edits,omitempty"`
	Delivered uint64         `json:"delivered,omitempty"`
	Items     int            `json:"items"`
	Segments  int            `json:"segments"`
	Digest    string         `json:"digest"`
}

type RecordedEdit struct {
	Actor string `json:"actor"`
	Op    string `json:"op"` // "PLACE","REMOVE"
	Pos   [2]int `json:"pos"`
	Block string `json:"block,omitempty"`
	Dir   string `json:"dir,omitempty"`
	Error string `json:"error,omitempty"`
}

type AuditEntry struct {
	Tick   uint64   `json:"tick"`
	Actor  string   `json:"actor"`
	Action string   `json:"action"` // e.g. "PLACE_BLOCK"
	Pos    [2]int   `json:"pos"`
	From   uint16   `json:"from"`
	To     uint16   `json:"to"`
	Items  []string `json:"items,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	if cats == nil {
		return nil, errors.New("world: nil catalogs")
	}
	if air, ok := cats.Blocks.Index["AIR"]; !ok || air != 0 {
		return nil, fmt.Errorf("world: AIR must be block 0")
	}
	cfg.applyDefaults()

	w := &World{
		cfg:           cfg,
		catalogs:      cats,
		tiles:         map[Pos]Tile{},
		sources:       map[Pos]*source{},
		sinks:         map[Pos]*sink{},
		edits:         make(chan EditRequest, 1024),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerLeave: make(chan string, 64),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}
	w.belts = runtime.NewRegistry(w, runtime.Hooks{
		OnCreate:  w.onCreate,
		OnMerge:   w.onMerge,
		OnSplit:   w.onSplit,
		OnHandOff: w.onHandOff,
		OnDestroy: w.onDestroy,
	})
	w.refreshLayer()
	w.publishMetrics(0)
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) Edits() chan<- EditRequest                { return w.edits }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }
func (w *World) CurrentTick() uint64                      { return w.tick.Load() }
func (w *World) Config() WorldConfig                      { return w.cfg }
func (w *World) Catalogs() *catalogs.Catalogs             { return w.catalogs }
func (w *World) Belts() *runtime.Registry                 { return w.belts }

func (w *World) TileAt(p Pos) Tile { return w.tiles[p] }

func (w *World) inBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < w.cfg.Width && p.Y < w.cfg.Height
}

func (w *World) blockName(id uint16) string {
	if int(id) < len(w.catalogs.Blocks.Palette) {
		return w.catalogs.Blocks.Palette[id]
	}
	return fmt.Sprintf("block#%d", id)
}

func (w *World) itemNames(items []uint8) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = w.catalogs.ItemName(it)
	}
	return out
}

func (w *World) audit(action string, p Pos, from, to uint16, items []uint8, reason string) {
	e := AuditEntry{
		Tick:   w.tick.Load(),
		Actor:  w.actor,
		Action: action,
		Pos:    [2]int{p.X, p.Y},
		From:   from,
		To:     to,
		Items:  w.itemNames(items),
		Reason: reason,
	}
	w.tickAudits = append(w.tickAudits, e)
	if w.auditLogger != nil {
		_ = w.auditLogger.WriteAudit(e)
	}
}

func (w *World) onCreate(s *runtime.Segment) {
	w.audit("SEGMENT_CREATE", s.Start(), 0, s.Kind(), nil,
		fmt.Sprintf("segment %d: %d tiles, %d items", s.ID(), s.Length(), s.ItemCount()))
}

func (w *World) onHandOff(*runtime.Segment, Pos, uint8) { w.handOffs++ }

func (w *World) onMerge(into, absorbed runtime.SegmentID) {
	s, _ := w.belts.Segment(into)
	w.audit("SEGMENT_MERGE", s.Start(), 0, 0, nil, fmt.Sprintf("segment %d absorbed %d", into, absorbed))
}

func (w *World) onSplit(tail, head runtime.SegmentID) {
	s, _ := w.belts.Segment(head)
	w.audit("SEGMENT_SPLIT", s.Start(), 0, 0, nil, fmt.Sprintf("segment %d split off %d", tail, head))
}

func (w *World) onDestroy(id runtime.SegmentID, p Pos, items []uint8) {
	if len(items) == 0 {
		return
	}
	w.destroyed += uint64(len(items))
	w.audit("DESTROY_ITEMS", p, 0, 0, items, fmt.Sprintf("segment %d", id))
}
