package model

import (
	"math"
	"sort"
)

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Inventory is a bounded item multiset. Capacity applies per item type;
// zero means unbounded. Counts never go negative and never exceed capacity.
type Inventory struct {
	Capacity int
	Items    map[string]int
}

func NewInventory(capacity int) *Inventory {
	return &Inventory{Capacity: capacity, Items: map[string]int{}}
}

func (inv *Inventory) Count(item string) int {
	if inv == nil || inv.Items == nil {
		return 0
	}
	return inv.Items[item]
}

func (inv *Inventory) Has(item string) bool { return inv.Count(item) > 0 }

// Free is how many more units of item fit.
func (inv *Inventory) Free(item string) int {
	if inv == nil {
		return 0
	}
	if inv.Capacity <= 0 {
		return math.MaxInt
	}
	n := inv.Capacity - inv.Count(item)
	if n < 0 {
		return 0
	}
	return n
}

// Add stores up to n units and returns how many were accepted.
func (inv *Inventory) Add(item string, n int) int {
	if inv == nil || item == "" || n <= 0 {
		return 0
	}
	if free := inv.Free(item); n > free {
		n = free
	}
	if n <= 0 {
		return 0
	}
	if inv.Items == nil {
		inv.Items = map[string]int{}
	}
	inv.Items[item] += n
	return n
}

// Remove takes up to n units and returns how many were removed.
func (inv *Inventory) Remove(item string, n int) int {
	if inv == nil || n <= 0 {
		return 0
	}
	have := inv.Count(item)
	if n > have {
		n = have
	}
	if n <= 0 {
		return 0
	}
	inv.Items[item] -= n
	if inv.Items[item] <= 0 {
		delete(inv.Items, item)
	}
	return n
}

func (inv *Inventory) Total() int {
	if inv == nil {
		return 0
	}
	total := 0
	for _, n := range inv.Items {
		total += n
	}
	return total
}

// Each visits held items in sorted order.
func (inv *Inventory) Each(fn func(item string, n int)) {
	for _, st := range inv.List() {
		fn(st.Item, st.Count)
	}
}

func (inv *Inventory) List() []ItemStack {
	if inv == nil {
		return nil
	}
	out := make([]ItemStack, 0, len(inv.Items))
	for item, n := range inv.Items {
		if n <= 0 {
			continue
		}
		out = append(out, ItemStack{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// Snapshot returns a copy with non-positive entries dropped, or nil when empty.
func (inv *Inventory) Snapshot() map[string]int {
	if inv == nil || len(inv.Items) == 0 {
		return nil
	}
	out := map[string]int{}
	for k, v := range inv.Items {
		if k != "" && v > 0 {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
