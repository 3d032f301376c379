package world

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yesC48/CyberIO/internal/persistence/snapshot"
	"github.com/yesC48/CyberIO/internal/protocol"
	"github.com/yesC48/CyberIO/internal/sim/layout"
	"github.com/yesC48/CyberIO/internal/sim/model"
)

func buildBusyWorld(t *testing.T) *World {
	t.Helper()
	w := newTestWorld(t)
	d := withTo(cmdAt(protocol.OpDispatch, 1, 10), 7, 10)
	d.Item = "copper"
	d.Count = 2
	mustApply(t, w,
		place("CONTAINER", 1, 1),
		addItems(1, 1, "copper", 10),
		addItems(1, 1, "sand", 10),
		addItems(1, 1, "coal", 10),
		place("UNLOADER", 2, 1),
		place("DISTRIBUTOR", 6, 1),
		place("ASSEMBLER", 7, 1),
		place("SILICON_SMELTER", 6, 2),
		withTo(cmdAt(protocol.OpConnect, 2, 1), 6, 1),
		place("DATA_NODE", 1, 10),
		place("DATA_NODE", 4, 10),
		place("DATA_NODE", 7, 10),
		link(1, 10, "RIGHT", 4, 10),
		link(4, 10, "RIGHT", 7, 10),
		addItems(1, 10, "copper", 3),
		d,
	)
	return w
}

func TestSnapshot_RoundTripDigest(t *testing.T) {
	src := buildBusyWorld(t)
	tick, digest := stepN(src, 6)

	snap := src.ExportSnapshot(tick)
	if snap.Header.Tick != tick || len(snap.Buildings) != 8 {
		t.Fatalf("snapshot header=%+v buildings=%d", snap.Header, len(snap.Buildings))
	}

	// Go through the file codec as the daemon does.
	path := snapshot.Path(t.TempDir(), tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	dst := newTestWorld(t)
	if err := dst.ImportSnapshot(loaded); err != nil {
		t.Fatalf("import: %v", err)
	}
	if dst.CurrentTick() != tick+1 {
		t.Fatalf("tick after import = %d, want %d", dst.CurrentTick(), tick+1)
	}
	if got := dst.StateDigest(tick); got != digest {
		t.Fatalf("digest mismatch after import:\n got %s\nwant %s", got, digest)
	}

	// Restored links are symmetric and the chain is one network again.
	g := dst.Graph()
	if v := g.CheckSymmetry(); len(v) != 0 {
		t.Fatalf("violations: %+v", v)
	}
	if !g.SameNetwork(model.Pack(1, 10), model.Pack(7, 10)) {
		t.Fatalf("chain not restored as one network")
	}
	s := dst.Building(model.Pack(2, 1)).Sender
	if !s.JustRestored || len(s.Receivers()) != 1 {
		t.Fatalf("sender restore: just=%v receivers=%v", s.JustRestored, s.Receivers())
	}

	// In-flight items survive and still arrive.
	stepN(dst, 20)
	if got := dst.Building(model.Pack(7, 10)).Items.Count("copper"); got != 2 {
		t.Fatalf("delivered after restore = %d, want 2", got)
	}
}

func TestSnapshot_ImportRejectsCatalogDrift(t *testing.T) {
	src := buildBusyWorld(t)
	snap := src.ExportSnapshot(0)
	snap.CatalogDigest = "stale"

	dst := newTestWorld(t)
	mustApply(t, dst, place("DATA_NODE", 3, 3))
	before := dst.StateDigest(0)
	if err := dst.ImportSnapshot(snap); err == nil {
		t.Fatalf("expected catalog digest error")
	}
	if dst.StateDigest(0) != before {
		t.Fatalf("failed import mutated the world")
	}
}

func TestSnapshot_ImportRejectsBadInput(t *testing.T) {
	src := buildBusyWorld(t)

	cases := map[string]func(s *snapshot.SnapshotV1){
		"version":  func(s *snapshot.SnapshotV1) { s.Header.Version = 9 },
		"size":     func(s *snapshot.SnapshotV1) { s.Width = 8 },
		"grid":     func(s *snapshot.SnapshotV1) { s.Grid = "!!" },
		"block":    func(s *snapshot.SnapshotV1) { s.Buildings[0].Block = "REACTOR" },
		"record":   func(s *snapshot.SnapshotV1) { s.Buildings[0].Record = []byte{9, 0} },
		"position": func(s *snapshot.SnapshotV1) { s.Buildings[0].Pos = [2]int{30, 30} },
		"palette":  func(s *snapshot.SnapshotV1) { s.BlockPalette = append(s.BlockPalette, "GONE") },
	}
	for name, mutate := range cases {
		snap := src.ExportSnapshot(0)
		mutate(&snap)
		if err := newTestWorld(t).ImportSnapshot(snap); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestAdminSnapshot_PushesToSink(t *testing.T) {
	w := buildBusyWorld(t)
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)
	stepN(w, 3)

	resp := make(chan AdminResult, 1)
	w.serveAdmin([]adminReq{{op: adminSnapshot, resp: resp}})
	r := <-resp
	if r.Err != nil || r.Tick != 2 {
		t.Fatalf("admin snapshot resp = %+v", r)
	}
	if snap := <-sink; snap.Header.Tick != 2 {
		t.Fatalf("sink tick = %d", snap.Header.Tick)
	}

	// A full sink is reported, not blocked on.
	sink <- snapshot.SnapshotV1{}
	w.serveAdmin([]adminReq{{op: adminSnapshot, resp: resp}})
	if r := <-resp; !errors.Is(r.Err, ErrSnapshotBusy) {
		t.Fatalf("err = %v, want ErrSnapshotBusy", r.Err)
	}
}

func TestAdmin_BatchSharesOneExport(t *testing.T) {
	w := buildBusyWorld(t)
	sink := make(chan snapshot.SnapshotV1, 4)
	w.SetSnapshotSink(sink)
	stepN(w, 2)

	a, b := make(chan AdminResult, 1), make(chan AdminResult, 1)
	chk := make(chan AdminResult, 1)
	w.serveAdmin([]adminReq{
		{op: adminSnapshot, resp: a},
		{op: adminCheckTopology, resp: chk},
		{op: adminSnapshot, resp: b},
	})
	if ra, rb := <-a, <-b; ra.Err != nil || rb.Err != nil {
		t.Fatalf("snapshot errs = %v, %v", ra.Err, rb.Err)
	}
	if len(sink) != 1 {
		t.Fatalf("exports = %d, want 1", len(sink))
	}
	rc := <-chk
	if rc.Tick != 1 || len(rc.Violations) != 0 {
		t.Fatalf("check = %+v", rc)
	}
}

func TestAdmin_NoSinkAndNoLoop(t *testing.T) {
	w := newTestWorld(t)
	resp := make(chan AdminResult, 1)
	w.serveAdmin([]adminReq{{op: adminSnapshot, resp: resp}})
	if r := <-resp; !errors.Is(r.Err, ErrNoSnapshotSink) {
		t.Fatalf("err = %v, want ErrNoSnapshotSink", r.Err)
	}

	// Nothing drains the admin queue without Run.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := w.CheckTopology(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline", err)
	}
	if _, err := (*World)(nil).RequestSnapshot(ctx); !errors.Is(err, ErrAdminUnavailable) {
		t.Fatalf("err = %v, want ErrAdminUnavailable", err)
	}
}

func TestSnapshot_Cadence(t *testing.T) {
	w, err := New(WorldConfig{ID: "test", Width: 16, Height: 16, SnapshotEveryTicks: 5}, testCatalogs(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sink := make(chan snapshot.SnapshotV1, 8)
	w.SetSnapshotSink(sink)
	stepN(w, 11)
	close(sink)
	var ticks []uint64
	for s := range sink {
		ticks = append(ticks, s.Header.Tick)
	}
	if len(ticks) != 2 || ticks[0] != 5 || ticks[1] != 10 {
		t.Fatalf("snapshot ticks = %v", ticks)
	}
}

func TestObserver_ReceivesFrames(t *testing.T) {
	w := buildBusyWorld(t)
	out := make(chan []byte, 1)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "s1", Out: out})
	stepN(w, 2)

	var f protocol.NetworkFrameMsg
	if err := json.Unmarshal(<-out, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if f.Type != protocol.TypeNetworkFrame || f.Tick != 1 || len(f.Buildings) != 8 {
		t.Fatalf("frame: type=%s tick=%d buildings=%d", f.Type, f.Tick, len(f.Buildings))
	}
	var dist *protocol.BuildingState
	for i := range f.Buildings {
		if f.Buildings[i].ID == "DISTRIBUTOR@6,1" {
			dist = &f.Buildings[i]
		}
	}
	if dist == nil || len(dist.Senders) != 1 || dist.Senders[0] != "UNLOADER@2,1" {
		t.Fatalf("distributor state = %+v", dist)
	}
	if len(f.Networks) == 0 {
		t.Fatalf("no networks in frame")
	}

	w.handleObserverLeave("s1")
	stepN(w, 1)
	select {
	case <-out:
		t.Fatalf("frame sent after leave")
	default:
	}
}

func TestBootstrap_DescribesWorld(t *testing.T) {
	w := newTestWorld(t)
	b := w.Bootstrap("abc")
	if b.SessionID != "abc" || b.Width != 32 || b.Height != 32 || b.TickRateHz != 5 {
		t.Fatalf("bootstrap = %+v", b)
	}
	if b.Catalogs.BlockPalette.Count != len(b.BlockPalette) || b.Catalogs.BlocksDigest == "" {
		t.Fatalf("bootstrap catalogs = %+v", b.Catalogs)
	}
}

func TestApplyLayout_Demo(t *testing.T) {
	l, err := layout.Load(filepath.Join("..", "..", "..", "configs", "layouts", "demo.yaml"))
	if err != nil {
		t.Fatalf("load layout: %v", err)
	}
	w, err := New(WorldConfig{ID: "demo", Width: l.Width, Height: l.Height}, testCatalogs(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.ApplyLayout(l); err != nil {
		t.Fatalf("apply: %v", err)
	}
	g := w.Graph()
	if !g.SameNetwork(model.Pack(1, 4), model.Pack(8, 4)) {
		t.Fatalf("demo chain not linked")
	}
	if !w.Building(model.Pack(8, 4)).Distributor.HasSender(model.Pack(2, 4)) {
		t.Fatalf("demo connection missing")
	}

	small, _ := New(WorldConfig{Width: 8, Height: 8}, testCatalogs(t))
	if err := small.ApplyLayout(l); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}
