package datanet

import (
	"sort"

	"github.com/yesC48/CyberIO/internal/sim/model"
)

type LinkReject int

const (
	LinkOK LinkReject = iota
	LinkMissing
	LinkSelf
	LinkOutOfRange
	LinkSideDisabled
	LinkSidesFull
	LinkDuplicate
)

func (r LinkReject) String() string {
	switch r {
	case LinkOK:
		return "ok"
	case LinkMissing:
		return "missing"
	case LinkSelf:
		return "self"
	case LinkOutOfRange:
		return "out_of_range"
	case LinkSideDisabled:
		return "side_disabled"
	case LinkSidesFull:
		return "sides_full"
	case LinkDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// Violation is one broken symmetry edge found by CheckSymmetry.
type Violation struct {
	Pos      model.Pos
	Side     Side
	Neighbor model.Pos
	Reason   string
}

type Stats struct {
	ReflowVisits uint64
	MergeVisits  uint64
	Heals        uint64
	Splits       uint64
	Merges       uint64
}

// Graph owns every network-participant node and the network arena.
// It is not safe for concurrent use; the world loop is its only caller.
type Graph struct {
	nodes map[model.Pos]*Node
	reg   *Registry

	tick        uint64
	nextRoutine RoutineID
	stats       Stats
}

func NewGraph() *Graph {
	return &Graph{
		nodes: map[model.Pos]*Node{},
		reg:   NewRegistry(),
	}
}

func (g *Graph) SetTick(t uint64)       { g.tick = t }
func (g *Graph) Registry() *Registry    { return g.reg }
func (g *Graph) Stats() Stats           { return g.stats }
func (g *Graph) Len() int               { return len(g.nodes) }
func (g *Graph) Node(p model.Pos) *Node { return g.nodes[p] }

// NextRoutine is the last routine handed out. Restores carry it forward so
// persisted in-flight routes never collide with fresh ones.
func (g *Graph) NextRoutine() RoutineID { return g.nextRoutine }

func (g *Graph) SetNextRoutine(id RoutineID) {
	if id > g.nextRoutine {
		g.nextRoutine = id
	}
}

// Positions returns node positions in ascending order.
func (g *Graph) Positions() []model.Pos {
	out := make([]model.Pos, 0, len(g.nodes))
	for p := range g.nodes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Add places an unlinked node into its own singleton network.
func (g *Graph) Add(n *Node) bool {
	if n == nil {
		return false
	}
	if _, ok := g.nodes[n.Pos]; ok {
		return false
	}
	n.Links = EmptyLinks()
	n.Routine = 0
	n.Network = g.reg.New(g.tick)
	g.reg.move(0, n.Network)
	g.nodes[n.Pos] = n
	return true
}

// Restore inserts nodes with their persisted links and rebuilds every
// network from scratch. Links pointing at nodes that are not restored are
// healed away by the rebuild traversal.
func (g *Graph) Restore(nodes []*Node) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		n.Network = 0
		n.Routine = 0
		g.nodes[n.Pos] = n
	}
	g.Rebuild()
}

// Rebuild drops every network and reassigns them by traversal in position order.
func (g *Graph) Rebuild() {
	g.reg.reset()
	for _, n := range g.nodes {
		n.Network = 0
	}
	for _, p := range g.Positions() {
		n := g.nodes[p]
		if n.Network != 0 {
			continue
		}
		id := g.reg.New(g.tick)
		g.reflow(n, id)
	}
}

// CheckLink explains why a link from self's side to target would be refused.
func (g *Graph) CheckLink(self model.Pos, side Side, target model.Pos) LinkReject {
	a := g.nodes[self]
	b := g.nodes[target]
	if a == nil || b == nil || !side.Valid() {
		return LinkMissing
	}
	if a == b {
		return LinkSelf
	}
	if a.Pos.Dst(b.Pos) > a.LinkRange {
		return LinkOutOfRange
	}
	if !a.SideEnable.Enabled(side) || !b.SideEnable.Enabled(side.Reflect()) {
		return LinkSideDisabled
	}
	if a.Links.Get(side) == b.Pos && b.Links.Get(side.Reflect()) == a.Pos {
		return LinkOK
	}
	if s, ok := a.Links.SideOf(b.Pos); ok && s != side {
		return LinkDuplicate
	}
	if a.Links.Occupied(side) && b.Links.Occupied(side.Reflect()) {
		return LinkSidesFull
	}
	return LinkOK
}

func (g *Graph) CanLink(self model.Pos, side Side, target model.Pos) bool {
	return g.CheckLink(self, side, target) == LinkOK
}

// Link joins self's side to target's reflected side. Old occupants of both
// slots are unlinked first, then the two networks merge.
func (g *Graph) Link(self model.Pos, side Side, target model.Pos) bool {
	if !g.CanLink(self, side, target) {
		return false
	}
	a := g.nodes[self]
	b := g.nodes[target]
	back := side.Reflect()
	if a.Links.Get(side) == b.Pos && b.Links.Get(back) == a.Pos {
		return true
	}
	g.ClearSide(self, side)
	g.ClearSide(target, back)
	a.Links.Set(side, b.Pos)
	b.Links.Set(back, a.Pos)
	g.merge(a, b)
	return true
}

// ClearSide unlinks one side of self, splitting the network when the
// neighbor can no longer be reached.
func (g *Graph) ClearSide(self model.Pos, side Side) {
	a := g.nodes[self]
	if a == nil || !side.Valid() || !a.Links.Occupied(side) {
		return
	}
	old := a.Links.Get(side)
	a.Links.Clear(side)
	a.Routine = 0
	b := g.nodes[old]
	if b == nil || b.Links.Get(side.Reflect()) != a.Pos {
		g.stats.Heals++
		g.reflow(a, a.Network)
		return
	}
	b.Links.Clear(side.Reflect())
	b.Routine = 0
	if b.Network != a.Network {
		g.reflow(a, a.Network)
		return
	}
	g.split(a, b)
}

func (g *Graph) split(a, b *Node) {
	selfID := a.Network
	fresh := g.reg.New(g.tick)
	g.stats.Splits++
	switch {
	case b.Links.Degree() == 0:
		// b is a leaf now; nothing else can be reached through it.
		g.assign(b, fresh)
	case a.Links.Degree() == 0:
		g.assign(a, fresh)
	default:
		g.reflow(b, fresh)
		g.reflow(a, selfID)
	}
	g.release(selfID, fresh)
}

// Remove unlinks every side of the node and drops it.
func (g *Graph) Remove(p model.Pos) bool {
	n := g.nodes[p]
	if n == nil {
		return false
	}
	g.OnRemoveFromGround(p)
	delete(g.nodes, p)
	old := n.Network
	g.reg.move(old, 0)
	n.Network = 0
	g.release(old)
	return true
}

func (g *Graph) OnRemoveFromGround(p model.Pos) {
	n := g.nodes[p]
	if n == nil {
		return
	}
	for _, s := range Sides() {
		if n.Links.Occupied(s) {
			g.ClearSide(p, s)
		}
	}
}

func (g *Graph) IsLinkedWith(a, b model.Pos) bool {
	return g.nodes[a].IsLinkedWith(g.nodes[b])
}

// Connections lists linked neighbors in side order.
func (g *Graph) Connections(p model.Pos) []*Node {
	n := g.nodes[p]
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, 4)
	n.Links.ForEach(func(_ Side, q model.Pos) {
		if m := g.nodes[q]; m != nil {
			out = append(out, m)
		}
	})
	return out
}

func (g *Graph) CanTransferTo(a, b model.Pos) bool {
	return g.nodes[a].CanTransferTo(g.nodes[b])
}

func (g *Graph) SameNetwork(a, b model.Pos) bool {
	na, nb := g.nodes[a], g.nodes[b]
	return na != nil && nb != nil && na.Network == nb.Network
}

// Members returns the positions holding id, in ascending order.
func (g *Graph) Members(id NetworkID) []model.Pos {
	var out []model.Pos
	for _, p := range g.Positions() {
		if g.nodes[p].Network == id {
			out = append(out, p)
		}
	}
	return out
}

// CheckSymmetry reports every link whose neighbor is missing or does not
// point back.
func (g *Graph) CheckSymmetry() []Violation {
	var out []Violation
	for _, p := range g.Positions() {
		n := g.nodes[p]
		n.Links.ForEach(func(s Side, q model.Pos) {
			m := g.nodes[q]
			switch {
			case m == nil:
				out = append(out, Violation{Pos: p, Side: s, Neighbor: q, Reason: "missing"})
			case m.Links.Get(s.Reflect()) != p:
				out = append(out, Violation{Pos: p, Side: s, Neighbor: q, Reason: "asymmetric"})
			case m.Network != n.Network:
				out = append(out, Violation{Pos: p, Side: s, Neighbor: q, Reason: "network"})
			}
		})
	}
	return out
}

// merge joins the networks of two freshly linked nodes. The larger
// component keeps its handle; the other is re-pointed by a traversal that
// only walks nodes still holding the absorbed handle.
func (g *Graph) merge(a, b *Node) {
	if a.Network == b.Network {
		return
	}
	g.stats.Merges++
	keep, lose := a, b
	if g.reg.Members(b.Network) > g.reg.Members(a.Network) {
		keep, lose = b, a
	}
	into, from := keep.Network, lose.Network
	q := []*Node{lose}
	g.assign(lose, into)
	for len(q) > 0 {
		cur := q[0]
		q = q[1:]
		g.stats.MergeVisits++
		for _, s := range Sides() {
			m := g.neighbor(cur, s)
			if m == nil || m.Network != from {
				continue
			}
			g.assign(m, into)
			q = append(q, m)
		}
	}
	g.release(from)
}

// reflow assigns id to every node reachable from seed and returns the count.
func (g *Graph) reflow(seed *Node, id NetworkID) int {
	if seed == nil {
		return 0
	}
	visited := map[model.Pos]bool{seed.Pos: true}
	q := []*Node{seed}
	for len(q) > 0 {
		cur := q[0]
		q = q[1:]
		g.assign(cur, id)
		g.stats.ReflowVisits++
		for _, s := range Sides() {
			m := g.neighbor(cur, s)
			if m == nil || visited[m.Pos] {
				continue
			}
			visited[m.Pos] = true
			q = append(q, m)
		}
	}
	return len(visited)
}

// neighbor follows one side, clearing the slot when the link turns out to be
// dangling or one-sided.
func (g *Graph) neighbor(n *Node, s Side) *Node {
	q := n.Links.Get(s)
	if q == model.PosEmpty {
		return nil
	}
	m := g.nodes[q]
	if m == nil || m.Links.Get(s.Reflect()) != n.Pos {
		n.Links.Clear(s)
		g.stats.Heals++
		return nil
	}
	return m
}

// release retires handles that no node references anymore.
func (g *Graph) release(ids ...NetworkID) {
	for _, id := range ids {
		if g.reg.Alive(id) && g.reg.Members(id) <= 0 {
			g.reg.Retire(id)
		}
	}
}

func (g *Graph) assign(n *Node, id NetworkID) {
	if n.Network == id {
		return
	}
	g.reg.move(n.Network, id)
	n.Network = id
}
