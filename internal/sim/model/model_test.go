package model

import "testing"

func TestPosPackRoundTrip(t *testing.T) {
	cases := [][2]int{{0, 0}, {3, 7}, {-1, 4}, {12, -9}, {-300, -300}}
	for _, c := range cases {
		p := Pack(c[0], c[1])
		if p.X() != c[0] || p.Y() != c[1] {
			t.Fatalf("pack %v -> (%d,%d)", c, p.X(), p.Y())
		}
	}
	if Pack(3, 4).Dst(Pack(0, 0)) != 5 {
		t.Fatalf("Dst mismatch")
	}
}

func TestBuildingIDRoundTrip(t *testing.T) {
	id := BuildingID("DISTRIBUTOR", Pack(4, 7))
	if id != "DISTRIBUTOR@4,7" {
		t.Fatalf("id=%q", id)
	}
	block, p, ok := ParseBuildingID(id)
	if !ok || block != "DISTRIBUTOR" || p != Pack(4, 7) {
		t.Fatalf("parse: %q %v %v", block, p, ok)
	}
	for _, bad := range []string{"", "X", "@1,2", "X@1", "X@a,b"} {
		if _, _, ok := ParseBuildingID(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestInventoryCapacity(t *testing.T) {
	inv := NewInventory(5)
	if got := inv.Add("copper", 7); got != 5 {
		t.Fatalf("accepted %d want 5", got)
	}
	if inv.Free("copper") != 0 || inv.Free("lead") != 5 {
		t.Fatalf("free copper=%d lead=%d", inv.Free("copper"), inv.Free("lead"))
	}
	if got := inv.Remove("copper", 9); got != 5 {
		t.Fatalf("removed %d want 5", got)
	}
	if inv.Has("copper") || inv.Total() != 0 {
		t.Fatalf("expected empty inventory")
	}
	if inv.Add("", 1) != 0 || inv.Add("x", -1) != 0 {
		t.Fatalf("invalid adds accepted")
	}
}

func TestInventoryListSorted(t *testing.T) {
	inv := NewInventory(0)
	inv.Add("silicon", 1)
	inv.Add("copper", 2)
	inv.Add("lead", 3)
	list := inv.List()
	if len(list) != 3 || list[0].Item != "copper" || list[2].Item != "silicon" {
		t.Fatalf("list=%+v", list)
	}
	var order []string
	inv.Each(func(item string, _ int) { order = append(order, item) })
	if order[1] != "lead" {
		t.Fatalf("each order=%v", order)
	}
	var nilInv *Inventory
	if nilInv.Count("x") != 0 || nilInv.Snapshot() != nil {
		t.Fatalf("nil inventory not inert")
	}
}
