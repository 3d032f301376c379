package world

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/yesC48/CyberIO/internal/sim/datanet"
	"github.com/yesC48/CyberIO/internal/sim/model"
	"github.com/yesC48/CyberIO/internal/sim/world/io/digestcodec"
)

// StateDigest hashes everything a snapshot persists. Loop goroutine only.
func (w *World) StateDigest(tick uint64) string { return w.stateDigest(tick) }

func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestcodec.WriteU64(h, &tmp, nowTick)
	digestcodec.WriteU64(h, &tmp, uint64(w.cfg.Width))
	digestcodec.WriteU64(h, &tmp, uint64(w.cfg.Height))
	for _, id := range w.grid {
		digestcodec.WriteU64(h, &tmp, uint64(id))
	}

	labels := w.networkLabels()
	order := w.positions()
	digestcodec.WriteU64(h, &tmp, uint64(len(order)))
	for _, p := range order {
		w.digestBuilding(h, &tmp, w.buildings[p], labels)
	}

	digestcodec.WriteU64(h, &tmp, w.worldChanges)
	digestcodec.WriteU64(h, &tmp, uint64(w.graph.NextRoutine()))
	digestcodec.WriteU64(h, &tmp, w.delivered)
	digestcodec.WriteU64(h, &tmp, w.crafted)

	return hex.EncodeToString(h.Sum(nil))
}

// networkLabels names every live network by its smallest member so the
// digest does not depend on handle allocation order.
func (w *World) networkLabels() map[datanet.NetworkID]model.Pos {
	out := map[datanet.NetworkID]model.Pos{}
	for _, p := range w.graph.Positions() {
		id := w.graph.Node(p).Network
		if cur, ok := out[id]; !ok || p < cur {
			out[id] = p
		}
	}
	return out
}

func (w *World) digestBuilding(h digestcodec.Writer, tmp *[8]byte, b *Building, labels map[datanet.NetworkID]model.Pos) {
	digestcodec.WriteI64(h, tmp, int64(b.Pos))
	digestcodec.WriteString(h, tmp, b.Block)
	digestcodec.WriteSortedNonZeroIntMap(h, tmp, b.Items.Snapshot())
	digestcodec.WriteF64(h, tmp, b.Efficiency)
	digestcodec.WriteF64(h, tmp, b.TimeScale)

	// Node.Routine is left out: restore clears it and the first hop re-paths.
	if n := b.Node; n != nil {
		h.Write([]byte{'N'})
		digestcodec.WriteI64(h, tmp, int64(labels[n.Network]))
		for _, q := range n.Links {
			digestcodec.WriteI64(h, tmp, int64(q))
		}
		digestcodec.WriteU64(h, tmp, uint64(len(n.Pending)))
		for _, pd := range n.Pending {
			digestcodec.WriteI64(h, tmp, int64(pd.Target))
			digestcodec.WriteString(h, tmp, pd.Item)
			digestcodec.WriteF64(h, tmp, pd.Progress)
			digestcodec.WriteU64(h, tmp, uint64(pd.Route))
			writePositions(h, tmp, pd.Hops)
		}
	}
	if s := b.Sender; s != nil {
		h.Write([]byte{'S'})
		writePositions(h, tmp, s.Receivers())
	}
	if d := b.Distributor; d != nil {
		h.Write([]byte{'D'})
		writePositions(h, tmp, d.Senders())
		digestcodec.WriteU64(h, tmp, uint64(d.DisIndex))
	}
	if c := b.Consumer; c != nil {
		h.Write([]byte{'C'})
		digestcodec.WriteI64(h, tmp, int64(c.Phase))
		digestcodec.WriteF64(h, tmp, c.Progress)
		digestcodec.WriteI64(h, tmp, int64(c.Crafted))
	}
}

func writePositions(h digestcodec.Writer, tmp *[8]byte, ps []model.Pos) {
	digestcodec.WriteU64(h, tmp, uint64(len(ps)))
	for _, p := range ps {
		digestcodec.WriteI64(h, tmp, int64(p))
	}
}
