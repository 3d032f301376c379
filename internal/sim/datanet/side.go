package datanet

import "github.com/yesC48/CyberIO/internal/sim/model"

type Side int

const (
	Right Side = iota
	Top
	Left
	Bottom
)

var sideNames = [4]string{"RIGHT", "TOP", "LEFT", "BOTTOM"}

// Sides lists every side in traversal order.
func Sides() [4]Side { return [4]Side{Right, Top, Left, Bottom} }

func (s Side) Reflect() Side { return (s + 2) % 4 }

func (s Side) Valid() bool { return s >= Right && s <= Bottom }

func (s Side) String() string {
	if !s.Valid() {
		return "INVALID"
	}
	return sideNames[s]
}

// Offset is the unit tile step a side points at.
func (s Side) Offset() (dx, dy int) {
	switch s {
	case Right:
		return 1, 0
	case Top:
		return 0, 1
	case Left:
		return -1, 0
	case Bottom:
		return 0, -1
	}
	return 0, 0
}

func ParseSide(v string) (Side, bool) {
	for i, n := range sideNames {
		if n == v {
			return Side(i), true
		}
	}
	return 0, false
}

// SideLinks maps each side to the linked neighbor position or PosEmpty.
type SideLinks [4]model.Pos

func EmptyLinks() SideLinks {
	return SideLinks{model.PosEmpty, model.PosEmpty, model.PosEmpty, model.PosEmpty}
}

func (l *SideLinks) Get(s Side) model.Pos    { return l[s] }
func (l *SideLinks) Set(s Side, p model.Pos) { l[s] = p }
func (l *SideLinks) Clear(s Side)            { l[s] = model.PosEmpty }
func (l *SideLinks) Occupied(s Side) bool    { return l[s] != model.PosEmpty }

func (l *SideLinks) Has(p model.Pos) bool {
	_, ok := l.SideOf(p)
	return ok
}

func (l *SideLinks) ForEach(fn func(Side, model.Pos)) {
	for _, s := range Sides() {
		if l[s] != model.PosEmpty {
			fn(s, l[s])
		}
	}
}

func (l *SideLinks) SideOf(p model.Pos) (Side, bool) {
	if p == model.PosEmpty {
		return 0, false
	}
	for _, s := range Sides() {
		if l[s] == p {
			return s, true
		}
	}
	return 0, false
}

func (l *SideLinks) Degree() int {
	n := 0
	for _, p := range l {
		if p != model.PosEmpty {
			n++
		}
	}
	return n
}

// SideEnable tells which sides of a block type may hold links.
type SideEnable [4]bool

func AllSides() SideEnable { return SideEnable{true, true, true, true} }

func (e SideEnable) Enabled(s Side) bool { return s.Valid() && e[s] }
