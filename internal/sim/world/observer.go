package world

import (
	"encoding/json"

	"github.com/yesC48/CyberIO/internal/protocol"
	"github.com/yesC48/CyberIO/internal/sim/datanet"
	"github.com/yesC48/CyberIO/internal/sim/model"
)

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	w.observers[req.SessionID] = req.Out
}

func (w *World) handleObserverLeave(id string) {
	delete(w.observers, id)
}

// Bootstrap describes the static parts of the world for a new observer.
// It only reads immutable config, so any goroutine may call it.
func (w *World) Bootstrap(sessionID string) protocol.BootstrapMsg {
	cats := w.catalogs
	return protocol.BootstrapMsg{
		Type:            protocol.TypeBootstrap,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Width:           w.cfg.Width,
		Height:          w.cfg.Height,
		TickRateHz:      w.cfg.TickRateHz,
		Tick:            w.tick.Load(),
		BlockPalette:    append([]string(nil), cats.Blocks.Palette...),
		ItemPalette:     append([]string(nil), cats.Items.Palette...),
		Catalogs: protocol.CatalogDigests{
			BlockPalette: protocol.DigestRef{Digest: cats.Blocks.PaletteDigest, Count: len(cats.Blocks.Palette)},
			ItemPalette:  protocol.DigestRef{Digest: cats.Items.PaletteDigest, Count: len(cats.Items.Palette)},
			BlocksDigest: cats.Blocks.DefsDigest,
			ItemsDigest:  cats.Items.DefsDigest,
		},
	}
}

func (w *World) stepObservers(nowTick uint64, tc protocol.TransferCounts, heals uint64, digest string) {
	if len(w.observers) == 0 {
		return
	}
	b, err := json.Marshal(w.buildFrame(nowTick, tc, heals, digest))
	if err != nil {
		w.logger.Printf("observer frame: %v", err)
		return
	}
	for _, out := range w.observers {
		sendLatest(out, b)
	}
}

func (w *World) buildFrame(nowTick uint64, tc protocol.TransferCounts, heals uint64, digest string) protocol.NetworkFrameMsg {
	f := protocol.NetworkFrameMsg{
		Type:            protocol.TypeNetworkFrame,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		Transfers:       tc,
		Heals:           heals,
		Digest:          digest,
	}
	reg := w.graph.Registry()
	for _, id := range reg.IDs() {
		f.Networks = append(f.Networks, protocol.NetworkRef{ID: uint32(id), Members: reg.Members(id)})
	}
	for _, p := range w.positions() {
		f.Buildings = append(f.Buildings, w.buildingState(w.buildings[p]))
	}
	return f
}

func (w *World) buildingState(b *Building) protocol.BuildingState {
	st := protocol.BuildingState{
		ID:         b.ID,
		Block:      b.Block,
		Pos:        b.Pos.ToArray(),
		Efficiency: b.Efficiency,
		TimeScale:  b.TimeScale,
		PowerUse:   b.PowerUse(),
		Status:     w.status(b),
	}
	for _, it := range b.Items.List() {
		st.Items = append(st.Items, protocol.ItemCount{Item: it.Item, Count: it.Count})
	}
	if n := b.Node; n != nil {
		st.Network = uint32(n.Network)
		st.Pending = len(n.Pending)
		n.Links.ForEach(func(s datanet.Side, q model.Pos) {
			st.Links = append(st.Links, protocol.LinkRef{Side: s.String(), To: q.ToArray()})
		})
	}
	if s := b.Sender; s != nil {
		st.Receivers = w.buildingIDs(s.Receivers())
	}
	if d := b.Distributor; d != nil {
		st.Requirements = d.Requirements()
		st.Senders = w.buildingIDs(d.Senders())
	}
	return st
}

func (w *World) buildingIDs(ps []model.Pos) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		if b := w.buildings[p]; b != nil {
			out = append(out, b.ID)
		}
	}
	return out
}

// status is a short machine-friendly state line for UIs.
func (w *World) status(b *Building) string {
	if b.Efficiency <= 0 && (b.Sender != nil || b.Distributor != nil || b.Consumer != nil) {
		return "unpowered"
	}
	switch {
	case b.Sender != nil:
		switch {
		case len(b.Sender.Receivers()) == 0:
			return "no_receivers"
		case len(b.Sender.NeedUnloadItems()) == 0:
			return "no_requirements"
		case b.Sender.SinceSend == 0:
			return "sending"
		}
		return "idle"
	case b.Distributor != nil:
		switch {
		case len(b.Distributor.Requirements()) == 0:
			return "no_requirements"
		case b.Distributor.SinceDistribution <= b.TimeScale:
			return "distributing"
		}
		return "idle"
	case b.Consumer != nil:
		if b.Consumer.Progress > 0 {
			return "crafting"
		}
		return "waiting"
	case b.Node != nil:
		if len(b.Node.Pending) > 0 {
			return "transferring"
		}
	}
	return ""
}
