package datanet

import "github.com/yesC48/CyberIO/internal/sim/model"

// Path is an ordered hop list, source first and target last.
type Path []model.Pos

type TransferStats struct {
	Advanced  int
	Hops      int
	Delivered int
	Missed    int
	Repaths   int
	Dropped   int
}

// Delivery records one item handed to its target buffer.
type Delivery struct {
	From model.Pos
	To   model.Pos
	Item string
}

// FindPath returns the shortest hop path between two nodes of one network.
func (g *Graph) FindPath(from, to model.Pos) (Path, bool) {
	src, dst := g.nodes[from], g.nodes[to]
	if src == nil || dst == nil || src.Network != dst.Network {
		return nil, false
	}
	if from == to {
		return Path{from}, true
	}
	parent := map[model.Pos]model.Pos{from: model.PosEmpty}
	q := []*Node{src}
	for len(q) > 0 {
		cur := q[0]
		q = q[1:]
		for _, s := range Sides() {
			m := g.neighbor(cur, s)
			if m == nil {
				continue
			}
			if _, seen := parent[m.Pos]; seen {
				continue
			}
			parent[m.Pos] = cur.Pos
			if m.Pos == to {
				return unwind(parent, to), true
			}
			q = append(q, m)
		}
	}
	return nil, false
}

func unwind(parent map[model.Pos]model.Pos, to model.Pos) Path {
	var rev Path
	for p := to; p != model.PosEmpty; p = parent[p] {
		rev = append(rev, p)
	}
	out := make(Path, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// AssignRoutine stamps a fresh routine on every node along the path.
func (g *Graph) AssignRoutine(path Path) RoutineID {
	g.nextRoutine++
	id := g.nextRoutine
	for _, p := range path {
		if n := g.nodes[p]; n != nil {
			n.Routine = id
		}
	}
	return id
}

// Dispatch takes one unit of item out of from's buffer and queues it toward to.
func (g *Graph) Dispatch(from, to model.Pos, item string) bool {
	src, dst := g.nodes[from], g.nodes[to]
	if src == nil || dst == nil || from == to {
		return false
	}
	if !src.Buffer.Has(item) || src.PendingFree() <= 0 {
		return false
	}
	path, ok := g.FindPath(from, to)
	if !ok {
		return false
	}
	route := g.AssignRoutine(path)
	src.Buffer.Remove(item, 1)
	src.Pending = append(src.Pending, PendingData{
		Target: to,
		Item:   item,
		Route:  route,
		Hops:   append([]model.Pos(nil), path[1:]...),
	})
	return true
}

type arrival struct {
	at *Node
	pd PendingData
}

// StepTransfers advances the head in-flight item of every node by speed.
// Items that reach a hop boundary move on only when the next hop is still
// linked, shares the route and has room; otherwise they wait.
func (g *Graph) StepTransfers(speed float64, onDeliver func(Delivery)) TransferStats {
	var st TransferStats
	var moved []arrival
	queued := map[*Node]int{}
	for _, p := range g.Positions() {
		n := g.nodes[p]
		if len(n.Pending) == 0 {
			continue
		}
		head := &n.Pending[0]
		st.Advanced++
		head.Progress += speed
		if head.Progress < 1 {
			continue
		}
		head.Progress = 1
		if g.nodes[head.Target] == nil {
			// target is gone; the item goes with it
			n.Pending = n.Pending[1:]
			st.Dropped++
			continue
		}
		next, ok := g.nextHop(n, head, &st)
		if !ok {
			st.Missed++
			continue
		}
		if next.Pos == head.Target {
			if next.Buffer.Add(head.Item, 1) != 1 {
				st.Missed++
				continue
			}
			st.Delivered++
			if onDeliver != nil {
				onDeliver(Delivery{From: n.Pos, To: next.Pos, Item: head.Item})
			}
			n.Pending = n.Pending[1:]
			continue
		}
		if next.PendingFree()-queued[next] <= 0 {
			st.Missed++
			continue
		}
		queued[next]++
		pd := *head
		pd.Progress = 0
		pd.Hops = pd.Hops[1:]
		moved = append(moved, arrival{at: next, pd: pd})
		n.Pending = n.Pending[1:]
		st.Hops++
	}
	for _, a := range moved {
		a.at.Pending = append(a.at.Pending, a.pd)
	}
	return st
}

// nextHop validates the head item's route, re-pathing once when it went stale.
func (g *Graph) nextHop(n *Node, pd *PendingData, st *TransferStats) (*Node, bool) {
	if next := g.routeHop(n, pd); next != nil {
		return next, true
	}
	path, ok := g.FindPath(n.Pos, pd.Target)
	if !ok || len(path) < 2 {
		return nil, false
	}
	st.Repaths++
	pd.Route = g.AssignRoutine(path)
	pd.Hops = append(pd.Hops[:0], path[1:]...)
	if next := g.routeHop(n, pd); next != nil {
		return next, true
	}
	return nil, false
}

func (g *Graph) routeHop(n *Node, pd *PendingData) *Node {
	if len(pd.Hops) == 0 || n.Routine != pd.Route {
		return nil
	}
	next := g.nodes[pd.Hops[0]]
	if next == nil || !n.IsLinkedWith(next) || !next.IsLinkedWith(n) {
		return nil
	}
	if !n.CanTransferTo(next) {
		return nil
	}
	return next
}
