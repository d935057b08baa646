package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"beltline.ai/internal/sim/world/feature/conveyor/runtime"
)

// stateDigest hashes everything that influences future ticks: tiles, every
// segment's geometry and queue, and the source/sink timers.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, w.delivered)
	digestWriteU64(h, &tmp, w.destroyed)

	for _, p := range runtime.SortedPositions(w.tiles) {
		t := w.tiles[p]
		digestWritePos(h, &tmp, p)
		digestWriteU64(h, &tmp, uint64(t.Block)<<8|uint64(t.Dir))
	}

	for _, s := range w.belts.Segments() {
		digestWriteU64(h, &tmp, uint64(s.ID()))
		digestWritePos(h, &tmp, s.Start())
		digestWritePos(h, &tmp, s.End())
		digestWritePos(h, &tmp, s.Seed())
		digestWriteU64(h, &tmp, uint64(s.Kind())<<8|uint64(s.Dir()))
		digestWriteU64(h, &tmp, uint64(s.Speed()))
		digestWriteU64(h, &tmp, uint64(s.StallIndex()))
		q := s.Queue()
		digestWriteU64(h, &tmp, uint64(q.Len()))
		for _, word := range q.Words() {
			binary.LittleEndian.PutUint32(tmp[:4], uint32(word))
			h.Write(tmp[:4])
		}
	}

	for _, p := range runtime.SortedPositions(w.sources) {
		src := w.sources[p]
		digestWritePos(h, &tmp, p)
		digestWriteU64(h, &tmp, uint64(src.wait))
		digestWriteU64(h, &tmp, src.emitted)
	}
	for _, p := range runtime.SortedPositions(w.sinks) {
		k := w.sinks[p]
		digestWritePos(h, &tmp, p)
		digestWriteU64(h, &tmp, uint64(k.wait))
		digestWriteU64(h, &tmp, k.received)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWritePos(h hash.Hash, tmp *[8]byte, p Pos) {
	digestWriteU64(h, tmp, uint64(int64(p.X)))
	digestWriteU64(h, tmp, uint64(int64(p.Y)))
}
