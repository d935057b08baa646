package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes a sequence of cell values into base64(varint pairs).
// The pairs are (value, run_len) repeated.
func EncodeRLE(cells []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(cells); {
		v := cells[i]
		run := 1
		for i+run < len(cells) && cells[i+run] == v {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE. It fails once the output would exceed limit
// cells; limit <= 0 disables the check.
func DecodeRLE(b64 string, limit int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFFFF {
			return nil, fmt.Errorf("cell value too large: %d", v)
		}
		if limit > 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("run of %d overflows %d cells", run, limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(v))
		}
	}
	return out, nil
}

// A layer cell packs a block palette id with the block's facing in the low
// two bits.
func PackCell(block uint16, dir uint8) uint16 { return block<<2 | uint16(dir&3) }

func UnpackCell(c uint16) (block uint16, dir uint8) { return c >> 2, uint8(c & 3) }

// MaxLayerBlock is the largest palette id a layer cell can hold.
const MaxLayerBlock = 1<<14 - 1

// EncodeLayer encodes a width x height grid row by row (y outer, x inner).
func EncodeLayer(width, height int, cell func(x, y int) uint16) string {
	cells := make([]uint16, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			cells = append(cells, cell(x, y))
		}
	}
	return EncodeRLE(cells)
}

// DecodeLayer decodes a layer and checks it covers exactly width x height cells.
func DecodeLayer(b64 string, width, height int) ([]uint16, error) {
	cells, err := DecodeRLE(b64, width*height)
	if err != nil {
		return nil, err
	}
	if len(cells) != width*height {
		return nil, fmt.Errorf("layer has %d cells, want %dx%d", len(cells), width, height)
	}
	return cells, nil
}
