package worldtest

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/yesC48/CyberIO/internal/persistence/snapshot"
	"github.com/yesC48/CyberIO/internal/protocol"
	"github.com/yesC48/CyberIO/internal/sim/catalogs"
	"github.com/yesC48/CyberIO/internal/sim/layout"
	"github.com/yesC48/CyberIO/internal/sim/datanet"
	"github.com/yesC48/CyberIO/internal/sim/model"
	world "github.com/yesC48/CyberIO/internal/sim/world"
)

// Harness drives a world through its exported API only:
// - Do() submits COMMANDs via StepOnce() and returns their results
// - an observer session collects the NETWORK_FRAME of every tick
// - Snapshot()/Restore() move state between worlds
//
// It intentionally avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	out       chan []byte
	lastFrame protocol.NetworkFrameMsg
	digests   []string
	totals    protocol.TransferCounts
	seq       int
}

func LoadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func NewHarness(t *testing.T, cfg world.WorldConfig, cats *catalogs.Catalogs) *Harness {
	t.Helper()
	w, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, cats)
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world instance.
// This is useful for snapshot round-trip tests where the snapshot is imported first.
func NewHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	h := &Harness{
		T:    t,
		Cats: cats,
		W:    w,
		out:  make(chan []byte, 1),
	}
	w.ObserverJoin() <- world.ObserverJoinRequest{SessionID: "harness", Out: h.out}
	return h
}

// NewDemoHarness loads configs/layouts/demo.yaml into a fresh world.
func NewDemoHarness(t *testing.T) *Harness {
	t.Helper()
	l, err := layout.Load("../../../configs/layouts/demo.yaml")
	if err != nil {
		t.Fatalf("load layout: %v", err)
	}
	cats := LoadCatalogs(t)
	h := NewHarness(t, world.WorldConfig{ID: "demo", Width: l.Width, Height: l.Height}, cats)
	if err := h.W.ApplyLayout(l); err != nil {
		t.Fatalf("apply layout: %v", err)
	}
	return h
}

// Do applies the commands in order during one tick and returns their results.
func (h *Harness) Do(cmds ...protocol.CommandMsg) []protocol.CommandResultMsg {
	h.T.Helper()
	reqs := make([]world.CommandRequest, len(cmds))
	resps := make([]chan protocol.CommandResultMsg, len(cmds))
	for i, c := range cmds {
		if c.CommandID == "" {
			h.seq++
			c.CommandID = fmt.Sprintf("h%d", h.seq)
		}
		resps[i] = make(chan protocol.CommandResultMsg, 1)
		reqs[i] = world.CommandRequest{Actor: "harness", Cmd: c, Resp: resps[i]}
	}
	h.step(reqs)
	results := make([]protocol.CommandResultMsg, len(cmds))
	for i, ch := range resps {
		select {
		case results[i] = <-ch:
		default:
			h.T.Fatalf("command %d got no result", i)
		}
	}
	return results
}

// MustDo is Do that fails the test on any rejected command.
func (h *Harness) MustDo(cmds ...protocol.CommandMsg) {
	h.T.Helper()
	for i, r := range h.Do(cmds...) {
		if !r.OK {
			h.T.Fatalf("command %d (%s) rejected: %s %s", i, cmds[i].Op, r.Code, r.Message)
		}
	}
}

func (h *Harness) Step() string {
	h.T.Helper()
	return h.step(nil)
}

func (h *Harness) StepN(n int) string {
	h.T.Helper()
	var d string
	for i := 0; i < n; i++ {
		d = h.step(nil)
	}
	return d
}

func (h *Harness) step(reqs []world.CommandRequest) string {
	h.T.Helper()
	_, digest := h.W.StepOnce(reqs)
	h.digests = append(h.digests, digest)
	h.drainFrame()
	return digest
}

func (h *Harness) drainFrame() {
	h.T.Helper()
	select {
	case b := <-h.out:
		var f protocol.NetworkFrameMsg
		if err := json.Unmarshal(b, &f); err != nil {
			h.T.Fatalf("unmarshal NETWORK_FRAME: %v", err)
		}
		h.lastFrame = f
		h.totals.Unloaded += f.Transfers.Unloaded
		h.totals.Sent += f.Transfers.Sent
		h.totals.Distributed += f.Transfers.Distributed
		h.totals.Crafted += f.Transfers.Crafted
		h.totals.Hops += f.Transfers.Hops
		h.totals.Delivered += f.Transfers.Delivered
		h.totals.Missed += f.Transfers.Missed
	default:
	}
}

func (h *Harness) LastFrame() protocol.NetworkFrameMsg { return h.lastFrame }

// Totals sums the transfer counters of every frame seen so far.
func (h *Harness) Totals() protocol.TransferCounts { return h.totals }

func (h *Harness) Digests() []string { return h.digests }

// Building finds a building in the last frame by its id ("BLOCK@x,y").
func (h *Harness) Building(id string) protocol.BuildingState {
	h.T.Helper()
	for _, b := range h.lastFrame.Buildings {
		if b.ID == id {
			return b
		}
	}
	h.T.Fatalf("building %s not in last frame (tick %d)", id, h.lastFrame.Tick)
	return protocol.BuildingState{}
}

func (h *Harness) ItemCount(id, item string) int {
	h.T.Helper()
	for _, it := range h.Building(id).Items {
		if it.Item == item {
			return it.Count
		}
	}
	return 0
}

func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	// Keep tick stable: export at currentTick-1 then import would restore to currentTick.
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

// Restore imports snap into a fresh world of the same size and wraps it.
func (h *Harness) Restore(snap snapshot.SnapshotV1) *Harness {
	h.T.Helper()
	w, err := world.New(world.WorldConfig{ID: snap.Header.WorldID, Width: snap.Width, Height: snap.Height, TickRateHz: snap.TickRate}, h.Cats)
	if err != nil {
		h.T.Fatalf("world.New: %v", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		h.T.Fatalf("ImportSnapshot: %v", err)
	}
	return NewHarnessWithWorld(h.T, w, h.Cats)
}

// CheckNetworks fails the test when links are asymmetric or when network
// membership disagrees with link connectivity.
func (h *Harness) CheckNetworks() {
	h.T.Helper()
	g := h.W.Graph()
	if v := g.CheckSymmetry(); len(v) != 0 {
		h.T.Fatalf("tick %d: link symmetry violations: %+v", h.W.CurrentTick(), v)
	}
	for _, comp := range linkComponents(g) {
		for _, p := range comp[1:] {
			if !g.SameNetwork(comp[0], p) {
				h.T.Fatalf("tick %d: %s and %s linked but on different networks", h.W.CurrentTick(), comp[0], p)
			}
		}
	}
	total := 0
	for _, id := range g.Registry().IDs() {
		total += len(g.Members(id))
	}
	if total != g.Len() {
		h.T.Fatalf("tick %d: networks hold %d members, graph has %d nodes", h.W.CurrentTick(), total, g.Len())
	}
	if comps := linkComponents(g); len(comps) != g.Registry().Len() {
		h.T.Fatalf("tick %d: %d link components but %d networks", h.W.CurrentTick(), len(comps), g.Registry().Len())
	}
}

// linkComponents groups node positions by link reachability, ignoring the
// network ids the graph assigned.
func linkComponents(g *datanet.Graph) [][]model.Pos {
	seen := map[model.Pos]bool{}
	var out [][]model.Pos
	for _, p := range g.Positions() {
		if seen[p] {
			continue
		}
		seen[p] = true
		comp := []model.Pos{p}
		for i := 0; i < len(comp); i++ {
			n := g.Node(comp[i])
			n.Links.ForEach(func(_ datanet.Side, q model.Pos) {
				if !seen[q] && g.Node(q) != nil {
					seen[q] = true
					comp = append(comp, q)
				}
			})
		}
		out = append(out, comp)
	}
	return out
}
