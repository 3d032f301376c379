package world

import (
	"github.com/yesC48/CyberIO/internal/persistence/snapshot"
	"github.com/yesC48/CyberIO/internal/sim/encoding"
	"github.com/yesC48/CyberIO/internal/sim/model"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	// Snapshot must be called from the world loop goroutine.
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
			RunID:   w.runID,
		},
		Width:              w.cfg.Width,
		Height:             w.cfg.Height,
		TickRate:           w.cfg.TickRateHz,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		CatalogDigest:      w.catalogs.Digest(),
		BlockPalette:       append([]string(nil), w.catalogs.Blocks.Palette...),
		Grid:               encoding.EncodeRLE(w.grid),
		Counters: snapshot.CountersV1{
			WorldChanges: w.worldChanges,
			NextRoutine:  uint32(w.graph.NextRoutine()),
			Delivered:    w.delivered,
			Crafted:      w.crafted,
		},
	}

	order := w.positions()
	s.Buildings = make([]snapshot.BuildingV1, 0, len(order))
	for _, p := range order {
		b := w.buildings[p]
		bs := snapshot.BuildingV1{
			Block:      b.Block,
			Pos:        p.ToArray(),
			Items:      b.Items.Snapshot(),
			Efficiency: b.Efficiency,
			TimeScale:  b.TimeScale,
		}
		if rec := buildingRecord(b); !rec.Empty() {
			raw, err := encoding.EncodeRecord(rec)
			if err != nil {
				// Catalog item ids are length-checked on load, so this is a bug.
				w.logger.Printf("snapshot: %s record: %v", b.ID, err)
			}
			bs.Record = raw
		}
		if c := b.Consumer; c != nil {
			bs.Consumer = &snapshot.ConsumerV1{Phase: c.Phase, Progress: c.Progress, Crafted: c.Crafted}
		}
		s.Buildings = append(s.Buildings, bs)
	}
	return s
}

func buildingRecord(b *Building) encoding.Record {
	var r encoding.Record
	if n := b.Node; n != nil {
		nr := &encoding.NodeRecord{Links: [4]model.Pos(n.Links)}
		for _, pd := range n.Pending {
			nr.Pending = append(nr.Pending, encoding.PendingRecord{
				Target:   pd.Target,
				Item:     pd.Item,
				Progress: pd.Progress,
				Route:    uint32(pd.Route),
				Hops:     append([]model.Pos(nil), pd.Hops...),
			})
		}
		r.Node = nr
	}
	if s := b.Sender; s != nil {
		r.Sender = &encoding.SenderRecord{Receivers: s.Receivers()}
	}
	if d := b.Distributor; d != nil {
		r.Distributor = &encoding.DistributorRecord{Senders: d.Senders(), DisIndex: uint8(d.DisIndex)}
	}
	return r
}
