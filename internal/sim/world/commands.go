package world

import (
	"fmt"
	"strings"

	"github.com/yesC48/CyberIO/internal/protocol"
	"github.com/yesC48/CyberIO/internal/sim/datanet"
	"github.com/yesC48/CyberIO/internal/sim/model"
	"github.com/yesC48/CyberIO/internal/sim/routing"
)

type commandHandler func(w *World, actor string, cmd protocol.CommandMsg, nowTick uint64) (code, message string)

var commandDispatch = map[string]commandHandler{
	protocol.OpPlace:        handlePlace,
	protocol.OpRemove:       handleRemove,
	protocol.OpLink:         handleLink,
	protocol.OpUnlink:       handleUnlink,
	protocol.OpConnect:      handleConnect,
	protocol.OpDisconnect:   handleDisconnect,
	protocol.OpSetPower:     handleSetPower,
	protocol.OpSetTimeScale: handleSetTimeScale,
	protocol.OpSetDynamic:   handleSetDynamic,
	protocol.OpAddItems:     handleAddItems,
	protocol.OpDispatch:     handleDispatch,
}

// applyCommand runs one command against the world. Rejections come back as
// protocol codes; the world is unchanged when the result is not OK.
func (w *World) applyCommand(actor string, cmd protocol.CommandMsg, nowTick uint64) protocol.CommandResultMsg {
	var code, msg string
	if cmd.ProtocolVersion != "" && cmd.ProtocolVersion != protocol.Version {
		code, msg = protocol.ErrProtoBadRequest, "unsupported protocol_version"
	} else if h := commandDispatch[cmd.Op]; h != nil {
		code, msg = h(w, actor, cmd, nowTick)
	} else {
		code, msg = protocol.ErrBadRequest, "unknown op"
	}
	w.collector.IncCommand(cmd.Op, code)
	return commandResult(nowTick, cmd.CommandID, code, msg)
}

func commandResult(tick uint64, ref string, code string, message string) protocol.CommandResultMsg {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
		if message == "" {
			message = "unknown error code"
		}
	}
	return protocol.CommandResultMsg{
		Type:            protocol.TypeCommandResult,
		ProtocolVersion: protocol.Version,
		CommandID:       ref,
		Tick:            tick,
		OK:              code == "",
		Code:            code,
		Message:         message,
	}
}

func handlePlace(w *World, actor string, cmd protocol.CommandMsg, nowTick uint64) (string, string) {
	block := strings.ToUpper(strings.TrimSpace(cmd.Block))
	def, ok := w.catalogs.Blocks.Defs[block]
	if !ok || block == "AIR" {
		return protocol.ErrBadRequest, "unknown block"
	}
	p := model.FromArray(cmd.At)
	if !w.inBounds(p) {
		return protocol.ErrInvalidTarget, "out of bounds"
	}
	if w.buildings[p] != nil {
		return protocol.ErrOccupied, "tile occupied"
	}
	b := w.place(def, p)
	e := AuditEntry{Tick: nowTick, Actor: actor, Action: protocol.OpPlace, Pos: cmd.At, Block: block}
	if b.Node != nil {
		e.Network = uint32(b.Node.Network)
	}
	w.audit(e)
	return "", ""
}

func handleRemove(w *World, actor string, cmd protocol.CommandMsg, nowTick uint64) (string, string) {
	p := model.FromArray(cmd.At)
	b := w.remove(p)
	if b == nil {
		return protocol.ErrInvalidTarget, "no building"
	}
	w.audit(AuditEntry{Tick: nowTick, Actor: actor, Action: protocol.OpRemove, Pos: cmd.At, Block: b.Block})
	return "", ""
}

func handleLink(w *World, actor string, cmd protocol.CommandMsg, nowTick uint64) (string, string) {
	side, ok := datanet.ParseSide(cmd.Side)
	if !ok {
		return protocol.ErrBadRequest, "bad side"
	}
	if cmd.To == nil {
		return protocol.ErrBadRequest, "missing to"
	}
	self, target := model.FromArray(cmd.At), model.FromArray(*cmd.To)
	switch why := w.graph.CheckLink(self, side, target); why {
	case datanet.LinkOK:
	case datanet.LinkMissing, datanet.LinkSelf:
		return protocol.ErrInvalidTarget, why.String()
	case datanet.LinkOutOfRange:
		return protocol.ErrOutOfRange, why.String()
	case datanet.LinkSideDisabled:
		return protocol.ErrSideDisabled, why.String()
	case datanet.LinkSidesFull:
		return protocol.ErrSidesFull, why.String()
	case datanet.LinkDuplicate:
		return protocol.ErrConflict, "already linked on another side"
	default:
		return protocol.ErrInternal, why.String()
	}
	if !w.graph.Link(self, side, target) {
		return protocol.ErrInternal, "link refused"
	}
	w.audit(AuditEntry{
		Tick:    nowTick,
		Actor:   actor,
		Action:  protocol.OpLink,
		Pos:     cmd.At,
		To:      cmd.To,
		Side:    side.String(),
		Network: uint32(w.graph.Node(self).Network),
	})
	return "", ""
}

func handleUnlink(w *World, actor string, cmd protocol.CommandMsg, nowTick uint64) (string, string) {
	side, ok := datanet.ParseSide(cmd.Side)
	if !ok {
		return protocol.ErrBadRequest, "bad side"
	}
	self := model.FromArray(cmd.At)
	n := w.graph.Node(self)
	if n == nil {
		return protocol.ErrInvalidTarget, "no network node"
	}
	prev := n.Links.Get(side)
	if prev == model.PosEmpty {
		return "", ""
	}
	w.graph.ClearSide(self, side)
	to := prev.ToArray()
	w.audit(AuditEntry{
		Tick:    nowTick,
		Actor:   actor,
		Action:  protocol.OpUnlink,
		Pos:     cmd.At,
		To:      &to,
		Side:    side.String(),
		Network: uint32(n.Network),
	})
	return "", ""
}

func handleConnect(w *World, actor string, cmd protocol.CommandMsg, nowTick uint64) (string, string) {
	b := w.buildings[model.FromArray(cmd.At)]
	if b == nil || b.Sender == nil {
		return protocol.ErrInvalidTarget, "no sender"
	}
	if cmd.To == nil {
		return protocol.ErrBadRequest, "missing to"
	}
	switch b.Sender.Connect(w.env, w.env.Receiver(model.FromArray(*cmd.To))) {
	case routing.ConnectOK:
	case routing.ConnectDuplicate:
		return protocol.ErrConflict, "already connected"
	case routing.ConnectOutOfRange:
		return protocol.ErrOutOfRange, "receiver out of range"
	case routing.ConnectSenderFull:
		return protocol.ErrCapacity, "sender connections full"
	case routing.ConnectReceiverFull:
		return protocol.ErrCapacity, "receiver refuses sender"
	case routing.ConnectNotReceiver:
		return protocol.ErrInvalidTarget, "not a receiver"
	}
	w.audit(AuditEntry{Tick: nowTick, Actor: actor, Action: protocol.OpConnect, Pos: cmd.At, To: cmd.To, Block: b.Block})
	return "", ""
}

func handleDisconnect(w *World, actor string, cmd protocol.CommandMsg, nowTick uint64) (string, string) {
	b := w.buildings[model.FromArray(cmd.At)]
	if b == nil || b.Sender == nil {
		return protocol.ErrInvalidTarget, "no sender"
	}
	if cmd.To == nil {
		return protocol.ErrBadRequest, "missing to"
	}
	if !b.Sender.Disconnect(w.env, model.FromArray(*cmd.To)) {
		return protocol.ErrInvalidTarget, "not connected"
	}
	w.audit(AuditEntry{Tick: nowTick, Actor: actor, Action: protocol.OpDisconnect, Pos: cmd.At, To: cmd.To, Block: b.Block})
	return "", ""
}

func handleSetPower(w *World, _ string, cmd protocol.CommandMsg, _ uint64) (string, string) {
	b := w.buildings[model.FromArray(cmd.At)]
	if b == nil {
		return protocol.ErrInvalidTarget, "no building"
	}
	if cmd.Value < 0 || cmd.Value > 1 {
		return protocol.ErrBadRequest, "power must be within [0,1]"
	}
	b.Efficiency = cmd.Value
	// Senders tick before distributors; the gate must hold this tick.
	if b.Distributor != nil {
		b.Distributor.SetEfficiency(cmd.Value)
	}
	return "", ""
}

func handleSetTimeScale(w *World, _ string, cmd protocol.CommandMsg, _ uint64) (string, string) {
	b := w.buildings[model.FromArray(cmd.At)]
	if b == nil {
		return protocol.ErrInvalidTarget, "no building"
	}
	if cmd.Value < 0 {
		return protocol.ErrBadRequest, "time scale must be >= 0"
	}
	b.TimeScale = cmd.Value
	return "", ""
}

func handleSetDynamic(w *World, _ string, cmd protocol.CommandMsg, _ uint64) (string, string) {
	p := model.FromArray(cmd.At)
	b := w.buildings[p]
	if b == nil || b.Consumer == nil {
		return protocol.ErrInvalidTarget, "no consumer"
	}
	if !b.Consumer.SetPhase(cmd.Phase) {
		return protocol.ErrBadRequest, "bad phase"
	}
	for _, q := range w.proximity(p) {
		if nb := w.buildings[q]; nb.Distributor != nil {
			nb.Distributor.UpdateRequirements(w.env)
		}
	}
	return "", ""
}

func handleAddItems(w *World, _ string, cmd protocol.CommandMsg, _ uint64) (string, string) {
	b := w.buildings[model.FromArray(cmd.At)]
	if b == nil {
		return protocol.ErrInvalidTarget, "no building"
	}
	if _, ok := w.catalogs.Items.Defs[cmd.Item]; !ok {
		return protocol.ErrBadRequest, "unknown item"
	}
	n := cmd.Count
	if n <= 0 {
		n = 1
	}
	if b.Items.Add(cmd.Item, n) == 0 {
		return protocol.ErrCapacity, "inventory full"
	}
	return "", ""
}

func handleDispatch(w *World, _ string, cmd protocol.CommandMsg, _ uint64) (string, string) {
	from := model.FromArray(cmd.At)
	src := w.graph.Node(from)
	if src == nil || cmd.To == nil || w.graph.Node(model.FromArray(*cmd.To)) == nil {
		return protocol.ErrInvalidTarget, "no network node"
	}
	to := model.FromArray(*cmd.To)
	if from == to {
		return protocol.ErrInvalidTarget, "source is target"
	}
	if !src.Buffer.Has(cmd.Item) {
		return protocol.ErrNoResource, "no stock"
	}
	if !w.graph.SameNetwork(from, to) {
		return protocol.ErrInvalidTarget, "not on the same network"
	}
	if src.PendingFree() <= 0 {
		return protocol.ErrCapacity, "pending full"
	}
	want := cmd.Count
	if want <= 0 {
		want = 1
	}
	sent := 0
	for sent < want && w.graph.Dispatch(from, to, cmd.Item) {
		sent++
	}
	if sent == 0 {
		return protocol.ErrStaleRoute, "no path"
	}
	return "", fmt.Sprintf("dispatched %d", sent)
}

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	if err := w.auditLogger.WriteAudit(e); err != nil {
		w.logger.Printf("audit: %v", err)
	}
}
