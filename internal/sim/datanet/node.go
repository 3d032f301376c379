package datanet

import "github.com/yesC48/CyberIO/internal/sim/model"

type RoutineID uint32

// PendingData is one item in flight out of a node toward Target.
// Hops holds the remaining path, next hop first.
type PendingData struct {
	Target   model.Pos   `json:"target"`
	Item     string      `json:"item"`
	Progress float64     `json:"progress"`
	Route    RoutineID   `json:"route"`
	Hops     []model.Pos `json:"hops,omitempty"`
}

type Node struct {
	Pos        model.Pos
	Links      SideLinks
	SideEnable SideEnable
	LinkRange  float64

	Network NetworkID
	Routine RoutineID

	Buffer  *model.Inventory
	Pending []PendingData
}

func NewNode(pos model.Pos, linkRange float64, capacity int, enable SideEnable) *Node {
	return &Node{
		Pos:        pos,
		Links:      EmptyLinks(),
		SideEnable: enable,
		LinkRange:  linkRange,
		Buffer:     model.NewInventory(capacity),
	}
}

// CanTransferTo reports whether both nodes were stamped with the same route.
func (n *Node) CanTransferTo(o *Node) bool {
	if n == nil || o == nil {
		return false
	}
	return n.Routine != 0 && n.Routine == o.Routine
}

func (n *Node) IsLinkedWith(o *Node) bool {
	if n == nil || o == nil {
		return false
	}
	return n.Links.Has(o.Pos)
}

// PendingFree is how many more in-flight items the node can carry.
func (n *Node) PendingFree() int {
	if n.Buffer == nil || n.Buffer.Capacity <= 0 {
		return 1
	}
	free := n.Buffer.Capacity - len(n.Pending)
	if free < 0 {
		return 0
	}
	return free
}
