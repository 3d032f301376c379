package datanet

import (
	"testing"

	"github.com/yesC48/CyberIO/internal/sim/model"
)

func newTestGraph(t *testing.T, coords ...[2]int) (*Graph, []model.Pos) {
	t.Helper()
	g := NewGraph()
	out := make([]model.Pos, 0, len(coords))
	for _, c := range coords {
		p := model.FromArray(c)
		if !g.Add(NewNode(p, 5, 10, AllSides())) {
			t.Fatalf("add %v failed", c)
		}
		out = append(out, p)
	}
	return g, out
}

func mustLink(t *testing.T, g *Graph, a model.Pos, s Side, b model.Pos) {
	t.Helper()
	if !g.Link(a, s, b) {
		t.Fatalf("link %v %s %v refused: %s", a, s, b, g.CheckLink(a, s, b))
	}
}

func assertSymmetric(t *testing.T, g *Graph) {
	t.Helper()
	if v := g.CheckSymmetry(); len(v) != 0 {
		t.Fatalf("symmetry violations: %+v", v)
	}
}

func TestSideReflect(t *testing.T) {
	for _, s := range Sides() {
		if s.Reflect().Reflect() != s {
			t.Fatalf("reflect twice of %s", s)
		}
	}
	if Right.Reflect() != Left || Top.Reflect() != Bottom {
		t.Fatalf("unexpected reflections")
	}
	if s, ok := ParseSide("BOTTOM"); !ok || s != Bottom {
		t.Fatalf("ParseSide: %v %v", s, ok)
	}
}

func TestLink_MergesNetworks(t *testing.T) {
	g, p := newTestGraph(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0}, [2]int{3, 0})
	mustLink(t, g, p[0], Right, p[1])
	mustLink(t, g, p[2], Right, p[3])
	if g.SameNetwork(p[1], p[2]) {
		t.Fatalf("separate pairs share a network")
	}
	if g.Registry().Len() != 2 {
		t.Fatalf("networks=%d want 2", g.Registry().Len())
	}

	mustLink(t, g, p[1], Right, p[2])
	id := g.Node(p[0]).Network
	for _, q := range p {
		if g.Node(q).Network != id {
			t.Fatalf("node %v network=%d want %d", q, g.Node(q).Network, id)
		}
	}
	if g.Registry().Len() != 1 || g.Registry().Members(id) != 4 {
		t.Fatalf("registry len=%d members=%d", g.Registry().Len(), g.Registry().Members(id))
	}
	assertSymmetric(t, g)
}

func TestLink_LargerComponentKeepsHandle(t *testing.T) {
	g, p := newTestGraph(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0}, [2]int{3, 0})
	mustLink(t, g, p[1], Right, p[2])
	mustLink(t, g, p[2], Right, p[3])
	big := g.Node(p[1]).Network
	before := g.Stats().MergeVisits

	mustLink(t, g, p[0], Right, p[1])
	if g.Node(p[0]).Network != big {
		t.Fatalf("singleton did not adopt the larger handle")
	}
	if got := g.Stats().MergeVisits - before; got != 1 {
		t.Fatalf("merge visited %d nodes, want only the absorbed one", got)
	}
}

func TestLink_IdenticalIsNoop(t *testing.T) {
	g, p := newTestGraph(t, [2]int{0, 0}, [2]int{1, 0})
	mustLink(t, g, p[0], Right, p[1])
	st := g.Stats()
	mustLink(t, g, p[0], Right, p[1])
	if g.Stats() != st {
		t.Fatalf("re-link mutated stats: %+v -> %+v", st, g.Stats())
	}
}

func TestLink_ReplacesOldOccupant(t *testing.T) {
	g, p := newTestGraph(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{1, 1})
	mustLink(t, g, p[0], Right, p[1])
	mustLink(t, g, p[0], Right, p[2])
	if g.Node(p[1]).Links.Degree() != 0 {
		t.Fatalf("old occupant still linked: %+v", g.Node(p[1]).Links)
	}
	if g.SameNetwork(p[0], p[1]) {
		t.Fatalf("old occupant still shares the network")
	}
	if !g.SameNetwork(p[0], p[2]) {
		t.Fatalf("new link did not merge")
	}
	assertSymmetric(t, g)
}

func TestCanLink(t *testing.T) {
	g, p := newTestGraph(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0}, [2]int{20, 0}, [2]int{0, 1})
	cases := []struct {
		name string
		prep func()
		a    model.Pos
		s    Side
		b    model.Pos
		want LinkReject
	}{
		{name: "ok", a: p[0], s: Right, b: p[1], want: LinkOK},
		{name: "self", a: p[0], s: Right, b: p[0], want: LinkSelf},
		{name: "missing", a: p[0], s: Right, b: model.Pack(9, 9), want: LinkMissing},
		{name: "range", a: p[0], s: Right, b: p[3], want: LinkOutOfRange},
		{
			name: "both occupied",
			prep: func() {
				mustLink(t, g, p[0], Right, p[1])
				mustLink(t, g, p[2], Left, p[4])
			},
			a: p[0], s: Right, b: p[2], want: LinkSidesFull,
		},
		{name: "one side free", a: p[4], s: Bottom, b: p[0], want: LinkOK},
		{name: "duplicate", a: p[0], s: Top, b: p[1], want: LinkDuplicate},
	}
	for _, tc := range cases {
		if tc.prep != nil {
			tc.prep()
		}
		if got := g.CheckLink(tc.a, tc.s, tc.b); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestCanLink_SideDisabled(t *testing.T) {
	g := NewGraph()
	a, b := model.Pack(0, 0), model.Pack(1, 0)
	g.Add(NewNode(a, 5, 10, SideEnable{false, true, true, true}))
	g.Add(NewNode(b, 5, 10, AllSides()))
	if g.CanLink(a, Right, b) {
		t.Fatalf("expected disabled side to refuse")
	}
	if g.Link(a, Right, b) {
		t.Fatalf("link through disabled side succeeded")
	}
	if g.Node(a).Links.Degree() != 0 || g.Node(b).Links.Degree() != 0 {
		t.Fatalf("refused link mutated state")
	}
}

func TestClearSide_SplitsChain(t *testing.T) {
	g, p := newTestGraph(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0}, [2]int{3, 0})
	mustLink(t, g, p[0], Right, p[1])
	mustLink(t, g, p[1], Right, p[2])
	mustLink(t, g, p[2], Right, p[3])

	g.ClearSide(p[1], Right)
	if g.SameNetwork(p[1], p[2]) {
		t.Fatalf("split did not separate networks")
	}
	if !g.SameNetwork(p[0], p[1]) || !g.SameNetwork(p[2], p[3]) {
		t.Fatalf("fragments lost internal connectivity")
	}
	if g.Registry().Len() != 2 {
		t.Fatalf("networks=%d want 2", g.Registry().Len())
	}
	if g.Registry().Members(g.Node(p[0]).Network) != 2 || g.Registry().Members(g.Node(p[3]).Network) != 2 {
		t.Fatalf("member counts off")
	}
	assertSymmetric(t, g)
}

func TestClearSide_CycleKeepsNetwork(t *testing.T) {
	// square: (0,0)-(1,0)-(1,1)-(0,1)-(0,0)
	g, p := newTestGraph(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{1, 1}, [2]int{0, 1})
	mustLink(t, g, p[0], Right, p[1])
	mustLink(t, g, p[1], Top, p[2])
	mustLink(t, g, p[2], Left, p[3])
	mustLink(t, g, p[3], Bottom, p[0])
	id := g.Node(p[0]).Network

	g.ClearSide(p[0], Right)
	if !g.SameNetwork(p[0], p[1]) {
		t.Fatalf("alternate path ignored")
	}
	if g.Node(p[0]).Network != id {
		t.Fatalf("self lost its network identity")
	}
	if g.Registry().Len() != 1 {
		t.Fatalf("transient network leaked: %v", g.Registry().IDs())
	}
	assertSymmetric(t, g)
}

func TestClearSide_LeafSkipsTraversal(t *testing.T) {
	g, p := newTestGraph(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0})
	mustLink(t, g, p[0], Right, p[1])
	mustLink(t, g, p[1], Right, p[2])
	before := g.Stats().ReflowVisits
	g.ClearSide(p[1], Right)
	if g.Stats().ReflowVisits != before {
		t.Fatalf("leaf split traversed %d nodes", g.Stats().ReflowVisits-before)
	}
	if g.SameNetwork(p[1], p[2]) {
		t.Fatalf("leaf still shares the network")
	}
}

func TestClearSide_EmptyIsNoop(t *testing.T) {
	g, p := newTestGraph(t, [2]int{0, 0})
	id := g.Node(p[0]).Network
	st := g.Stats()
	g.ClearSide(p[0], Top)
	g.ClearSide(p[0], Top)
	if g.Stats() != st || g.Node(p[0]).Network != id {
		t.Fatalf("clearing an empty side mutated state")
	}
}

func TestRemove_ClearsEverySide(t *testing.T) {
	g, p := newTestGraph(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0}, [2]int{1, 1})
	mustLink(t, g, p[1], Left, p[0])
	mustLink(t, g, p[1], Right, p[2])
	mustLink(t, g, p[1], Top, p[3])

	if !g.Remove(p[1]) {
		t.Fatalf("remove failed")
	}
	if g.Node(p[1]) != nil {
		t.Fatalf("node still present")
	}
	for _, q := range []model.Pos{p[0], p[2], p[3]} {
		if g.Node(q).Links.Degree() != 0 {
			t.Fatalf("dangling link on %v", q)
		}
	}
	if g.Registry().Len() != 3 {
		t.Fatalf("networks=%d want 3", g.Registry().Len())
	}
	assertSymmetric(t, g)
}

func TestReflow_HealsDanglingLink(t *testing.T) {
	g, p := newTestGraph(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0})
	mustLink(t, g, p[0], Right, p[1])
	mustLink(t, g, p[1], Right, p[2])
	// simulate a desync: p[2] forgets the link
	g.Node(p[2]).Links.Clear(Left)
	if len(g.CheckSymmetry()) == 0 {
		t.Fatalf("expected a violation")
	}

	g.Rebuild()
	if g.Stats().Heals == 0 {
		t.Fatalf("expected heal count")
	}
	assertSymmetric(t, g)
	if g.SameNetwork(p[1], p[2]) {
		t.Fatalf("healed link still connects networks")
	}
}

func TestRestore_RebuildsFromLinks(t *testing.T) {
	a := NewNode(model.Pack(0, 0), 5, 10, AllSides())
	b := NewNode(model.Pack(1, 0), 5, 10, AllSides())
	c := NewNode(model.Pack(5, 5), 5, 10, AllSides())
	a.Links.Set(Right, b.Pos)
	b.Links.Set(Left, a.Pos)
	c.Links.Set(Top, model.Pack(5, 6)) // not restored

	g := NewGraph()
	g.Restore([]*Node{a, b, c})
	if !g.SameNetwork(a.Pos, b.Pos) || g.SameNetwork(a.Pos, c.Pos) {
		t.Fatalf("unexpected membership after restore")
	}
	if c.Links.Degree() != 0 {
		t.Fatalf("dangling restored link not healed")
	}
	if g.Registry().Len() != 2 {
		t.Fatalf("networks=%d want 2", g.Registry().Len())
	}
}

func TestMembersAndConnections(t *testing.T) {
	g, p := newTestGraph(t, [2]int{0, 0}, [2]int{1, 0}, [2]int{0, 1})
	mustLink(t, g, p[0], Right, p[1])
	mustLink(t, g, p[0], Top, p[2])
	conns := g.Connections(p[0])
	if len(conns) != 2 || conns[0].Pos != p[1] || conns[1].Pos != p[2] {
		t.Fatalf("connections order: %+v", conns)
	}
	if got := g.Members(g.Node(p[0]).Network); len(got) != 3 {
		t.Fatalf("members=%v", got)
	}
	if !g.IsLinkedWith(p[0], p[1]) || g.IsLinkedWith(p[1], p[2]) {
		t.Fatalf("IsLinkedWith mismatch")
	}
}
