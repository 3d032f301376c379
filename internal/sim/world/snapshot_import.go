package world

import (
	"fmt"
	"strings"

	"github.com/yesC48/CyberIO/internal/persistence/snapshot"
	"github.com/yesC48/CyberIO/internal/sim/catalogs"
	"github.com/yesC48/CyberIO/internal/sim/datanet"
	"github.com/yesC48/CyberIO/internal/sim/encoding"
	"github.com/yesC48/CyberIO/internal/sim/model"
	"github.com/yesC48/CyberIO/internal/sim/world/io/snapshotcodec"
)

type restoredBuilding struct {
	def catalogs.BlockDef
	in  snapshot.BuildingV1
	pos model.Pos
	rec encoding.Record
}

// ImportSnapshot replaces the current in-memory world state with the snapshot.
// It sets the world's tick to snapshotTick+1 (the next tick to simulate).
// Nothing is changed when an error is returned.
//
// This must be called only when the world is stopped or from the world loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if w.cfg.Width != s.Width || w.cfg.Height != s.Height {
		return fmt.Errorf("snapshot size mismatch: cfg=%dx%d snap=%dx%d", w.cfg.Width, w.cfg.Height, s.Width, s.Height)
	}
	if d := w.catalogs.Digest(); s.CatalogDigest != d {
		return fmt.Errorf("snapshot catalog digest mismatch: cfg=%s snap=%s", d, s.CatalogDigest)
	}

	remap, missing := snapshotcodec.PaletteRemap(s.BlockPalette, w.catalogs.Blocks.Index)
	if len(missing) > 0 {
		return fmt.Errorf("snapshot blocks missing from catalog: %s", strings.Join(missing, ","))
	}
	ids, err := encoding.DecodeRLE(s.Grid, w.cfg.Width*w.cfg.Height)
	if err != nil {
		return fmt.Errorf("snapshot grid: %w", err)
	}
	grid := make([]uint16, len(ids))
	for i, id := range ids {
		live, ok := remap[id]
		if !ok {
			return fmt.Errorf("snapshot grid: palette id %d out of range", id)
		}
		grid[i] = live
	}

	restored := make([]restoredBuilding, 0, len(s.Buildings))
	seen := map[model.Pos]bool{}
	for _, bs := range s.Buildings {
		def, ok := w.catalogs.Blocks.Defs[bs.Block]
		if !ok || bs.Block == "AIR" {
			return fmt.Errorf("snapshot building %v: unknown block %q", bs.Pos, bs.Block)
		}
		p := model.FromArray(bs.Pos)
		if !w.inBounds(p) || seen[p] {
			return fmt.Errorf("snapshot building %v: bad position", bs.Pos)
		}
		seen[p] = true
		if grid[w.cell(p)] != w.catalogs.Blocks.Index[bs.Block] {
			return fmt.Errorf("snapshot building %v: grid disagrees with %s", bs.Pos, bs.Block)
		}
		rec, err := encoding.DecodeRecord(bs.Record)
		if err != nil {
			return fmt.Errorf("snapshot building %v: %w", bs.Pos, err)
		}
		restored = append(restored, restoredBuilding{def: def, in: bs, pos: p, rec: rec})
	}

	// Past this point the import cannot fail.
	w.grid = grid
	w.buildings = make(map[model.Pos]*Building, len(restored))
	w.graph = datanet.NewGraph()

	nodes := make([]*datanet.Node, 0, len(restored))
	for _, r := range restored {
		b := w.newBuilding(r.def, r.pos)
		for item, n := range snapshotcodec.PositiveMap(r.in.Items) {
			b.Items.Add(item, n)
		}
		b.Efficiency = r.in.Efficiency
		if b.Distributor != nil {
			b.Distributor.SetEfficiency(b.Efficiency)
		}
		b.TimeScale = r.in.TimeScale
		if c := b.Consumer; c != nil && r.in.Consumer != nil {
			c.Phase = r.in.Consumer.Phase
			c.Progress = r.in.Consumer.Progress
			c.Crafted = r.in.Consumer.Crafted
		}
		if b.Node != nil && r.rec.Node != nil {
			b.Node.Links = datanet.SideLinks(r.rec.Node.Links)
			for _, pd := range r.rec.Node.Pending {
				b.Node.Pending = append(b.Node.Pending, datanet.PendingData{
					Target:   pd.Target,
					Item:     pd.Item,
					Progress: pd.Progress,
					Route:    datanet.RoutineID(pd.Route),
					Hops:     pd.Hops,
				})
			}
		}
		if b.Node != nil {
			nodes = append(nodes, b.Node)
		}
		w.buildings[r.pos] = b
	}
	w.graph.Restore(nodes)
	w.graph.SetNextRoutine(datanet.RoutineID(s.Counters.NextRoutine))

	for _, r := range restored {
		b := w.buildings[r.pos]
		if b.Distributor == nil {
			continue
		}
		b.Distributor.UpdateRequirements(w.env)
		if d := r.rec.Distributor; d != nil {
			b.Distributor.Restore(d.Senders, int(d.DisIndex))
		}
	}
	for _, r := range restored {
		b := w.buildings[r.pos]
		if b.Sender == nil {
			continue
		}
		if sr := r.rec.Sender; sr != nil {
			b.Sender.RestoreReceivers(sr.Receivers)
		}
		b.Sender.UpdateNearby(w.env)
	}

	w.worldChanges = s.Counters.WorldChanges
	w.delivered = s.Counters.Delivered
	w.crafted = s.Counters.Crafted
	if s.SnapshotEveryTicks > 0 {
		w.cfg.SnapshotEveryTicks = s.SnapshotEveryTicks
	}
	w.orderValid = false
	w.lastGraphStats = w.graph.Stats()
	w.tick.Store(s.Header.Tick + 1)
	return nil
}
