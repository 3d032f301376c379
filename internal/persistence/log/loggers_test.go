package log

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yesC48/CyberIO/internal/sim/world"
)

func TestJSONLZstdWriter_RotatesAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "ticks")
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if err := w.Write(world.TickLogEntry{Tick: uint64(i), Digest: "d"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(world.TickLogEntry{Tick: 3}); err != nil {
		t.Fatalf("write after rotate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	first := filepath.Join(dir, "ticks-2026-03-01-10.jsonl.zst")
	var ticks []uint64
	err := ReadJSONLZstd(first, func(line []byte) error {
		var e world.TickLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		ticks = append(ticks, e.Tick)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(ticks) != 3 || ticks[2] != 2 {
		t.Fatalf("first hour ticks = %v", ticks)
	}

	n := 0
	if err := ReadJSONLZstd(filepath.Join(dir, "ticks-2026-03-01-11.jsonl.zst"), func([]byte) error { n++; return nil }); err != nil {
		t.Fatalf("read second: %v", err)
	}
	if n != 1 {
		t.Fatalf("second hour lines = %d", n)
	}
}

func TestJSONLZstdWriter_AppendsAfterReopen(t *testing.T) {
	dir := t.TempDir()
	fixed := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "audit")
		w.now = fixed
		if err := w.Write(world.AuditEntry{Tick: uint64(i), Action: "PLACE"}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	n := 0
	if err := ReadJSONLZstd(filepath.Join(dir, "audit-2026-03-01-12.jsonl.zst"), func([]byte) error { n++; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 {
		t.Fatalf("lines across frames = %d, want 2", n)
	}
}

type failingTicks struct{ n int }

func (f *failingTicks) WriteTick(world.TickLogEntry) error {
	f.n++
	return errors.New("disk full")
}

type countingTicks struct{ n int }

func (c *countingTicks) WriteTick(world.TickLogEntry) error {
	c.n++
	return nil
}

func TestTickFanout_WritesAllAndJoinsErrors(t *testing.T) {
	bad, good := &failingTicks{}, &countingTicks{}
	f := TickFanout{bad, good}
	if err := f.WriteTick(world.TickLogEntry{Tick: 1}); err == nil {
		t.Fatalf("expected joined error")
	}
	if bad.n != 1 || good.n != 1 {
		t.Fatalf("fanout calls bad=%d good=%d", bad.n, good.n)
	}
}
