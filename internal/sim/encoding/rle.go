package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE packs a row-major grid of palette ids as base64 of
// (id, run) uvarint pairs.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(ids); {
		id := ids[i]
		run := 1
		for i+run < len(ids) && ids[i+run] == id {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(id))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE expands an EncodeRLE string. want > 0 bounds the decoded length
// and must match it exactly; want <= 0 accepts any length.
func DecodeRLE(b64 string, want int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("rle: %w", err)
	}
	var out []uint16
	if want > 0 {
		out = make([]uint16, 0, want)
	}
	for i := 0; i < len(raw); {
		id, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad id varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad run varint at %d", i)
		}
		i += n
		if id > 0xFFFF {
			return nil, fmt.Errorf("rle: palette id too large: %d", id)
		}
		if run == 0 {
			return nil, fmt.Errorf("rle: empty run at %d", i)
		}
		if want > 0 && uint64(len(out))+run > uint64(want) {
			return nil, fmt.Errorf("rle: grid overflows %d cells", want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(id))
		}
	}
	if want > 0 && len(out) != want {
		return nil, fmt.Errorf("rle: decoded %d cells, want %d", len(out), want)
	}
	return out, nil
}
