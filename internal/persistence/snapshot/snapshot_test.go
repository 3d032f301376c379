package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sample() SnapshotV1 {
	return SnapshotV1{
		Header:        Header{Version: Version, WorldID: "demo", Tick: 42, RunID: "r1"},
		Width:         4,
		Height:        2,
		TickRate:      5,
		CatalogDigest: "abc",
		BlockPalette:  []string{"AIR", "DATA_NODE"},
		Grid:          "AAgBAQ==",
		Buildings: []BuildingV1{{
			Block:      "DATA_NODE",
			Pos:        [2]int{1, 0},
			Record:     []byte{1, 1, 0, 0, 0, 0},
			Items:      map[string]int{"copper": 2},
			Efficiency: 1,
			TimeScale:  1,
			Consumer:   &ConsumerV1{Phase: 1, Progress: 0.5, Crafted: 3},
		}},
		Counters: CountersV1{WorldChanges: 9, NextRoutine: 4, Delivered: 2},
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	p := Path(t.TempDir(), 42)
	in := sample()
	if err := WriteSnapshot(p, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	out, err := ReadSnapshot(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("mismatch:\n in=%+v\nout=%+v", in, out)
	}
	h, err := ReadHeader(p)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h != in.Header {
		t.Fatalf("header = %+v", h)
	}
}

func TestSnapshot_RejectsOtherVersion(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.snap.zst")
	s := sample()
	s.Header.Version = 99
	if err := WriteSnapshot(p, s); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(p); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestSnapshot_ReadGarbage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.snap.zst")
	if err := os.WriteFile(p, []byte("not zstd"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(p); err == nil {
		t.Fatalf("expected decode error")
	}
}
