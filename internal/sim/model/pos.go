package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Pos is a tile coordinate packed into one integer: x in the high 16 bits,
// y in the low 16 bits. It is stable for the lifetime of a building.
type Pos int32

// PosEmpty marks an unused link slot.
const PosEmpty Pos = -1

func Pack(x, y int) Pos {
	return Pos(int32(x)<<16 | int32(y)&0xFFFF)
}

func (p Pos) X() int { return int(int32(p) >> 16) }
func (p Pos) Y() int { return int(int16(int32(p) & 0xFFFF)) }

func (p Pos) Add(dx, dy int) Pos { return Pack(p.X()+dx, p.Y()+dy) }

// Dst is the euclidean distance between tile centers.
func (p Pos) Dst(o Pos) float64 {
	dx := float64(p.X() - o.X())
	dy := float64(p.Y() - o.Y())
	return math.Sqrt(dx*dx + dy*dy)
}

func (p Pos) ToArray() [2]int { return [2]int{p.X(), p.Y()} }

func FromArray(a [2]int) Pos { return Pack(a[0], a[1]) }

func (p Pos) String() string {
	if p == PosEmpty {
		return "-"
	}
	return fmt.Sprintf("%d,%d", p.X(), p.Y())
}

// BuildingID is the external identifier of a building, e.g. "DISTRIBUTOR@4,7".
func BuildingID(block string, p Pos) string {
	return fmt.Sprintf("%s@%d,%d", block, p.X(), p.Y())
}

func ParseBuildingID(id string) (block string, p Pos, ok bool) {
	parts := strings.SplitN(id, "@", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", PosEmpty, false
	}
	coord := strings.Split(parts[1], ",")
	if len(coord) != 2 {
		return "", PosEmpty, false
	}
	x, err1 := strconv.Atoi(coord[0])
	y, err2 := strconv.Atoi(coord[1])
	if err1 != nil || err2 != nil {
		return "", PosEmpty, false
	}
	return parts[0], Pack(x, y), true
}
