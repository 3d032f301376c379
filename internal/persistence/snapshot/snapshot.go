package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	RunID   string `json:"run_id,omitempty"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Width              int    `json:"width"`
	Height             int    `json:"height"`
	TickRate           int    `json:"tick_rate_hz"`
	SnapshotEveryTicks int    `json:"snapshot_every_ticks,omitempty"`
	CatalogDigest      string `json:"catalog_digest"`

	// Grid is the row-major block palette id grid, RLE encoded.
	BlockPalette []string `json:"block_palette"`
	Grid         string   `json:"grid"`

	Buildings []BuildingV1 `json:"buildings"`
	Counters  CountersV1   `json:"counters"`
}

type BuildingV1 struct {
	Block string `json:"block"`
	Pos   [2]int `json:"pos"`

	// Record is the binary connection record (links, pending items,
	// receivers, senders, round robin index).
	Record []byte `json:"record,omitempty"`

	Items      map[string]int `json:"items,omitempty"`
	Efficiency float64        `json:"efficiency"`
	TimeScale  float64        `json:"time_scale"`

	Consumer *ConsumerV1 `json:"consumer,omitempty"`
}

type ConsumerV1 struct {
	Phase    int     `json:"phase"`
	Progress float64 `json:"progress"`
	Crafted  int     `json:"crafted"`
}

type CountersV1 struct {
	WorldChanges uint64 `json:"world_changes"`
	NextRoutine  uint32 `json:"next_routine"`
	Delivered    uint64 `json:"delivered"`
	Crafted      uint64 `json:"crafted"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// Path is the conventional location of the snapshot for tick.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
}
