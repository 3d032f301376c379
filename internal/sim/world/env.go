package world

import (
	"github.com/yesC48/CyberIO/internal/sim/distributor"
	"github.com/yesC48/CyberIO/internal/sim/model"
	"github.com/yesC48/CyberIO/internal/sim/routing"
)

// simEnv is the host view handed to senders and distributors. It reads
// world state directly and is only valid on the loop goroutine.
type simEnv struct {
	w *World
}

var (
	_ routing.SenderEnv = (*simEnv)(nil)
	_ distributor.Env   = (*simEnv)(nil)
)

func (e *simEnv) Receiver(p model.Pos) routing.Receiver {
	b := e.w.buildings[p]
	if b == nil || b.Distributor == nil {
		// explicit nil: a typed nil pointer would not compare equal to nil
		return nil
	}
	return b.Distributor
}

func (e *simEnv) Unloadable(p model.Pos) *model.Inventory {
	b := e.w.buildings[p]
	if b == nil || !b.Storage {
		return nil
	}
	return b.Items
}

func (e *simEnv) Proximity(p model.Pos) []model.Pos { return e.w.proximity(p) }
func (e *simEnv) WorldChanges() uint64             { return e.w.worldChanges }
func (e *simEnv) ItemTypes() []string              { return e.w.itemTypes }

func (e *simEnv) Efficiency(p model.Pos) float64 {
	if b := e.w.buildings[p]; b != nil {
		return b.Efficiency
	}
	return 0
}

func (e *simEnv) TimeScale(p model.Pos) float64 {
	if b := e.w.buildings[p]; b != nil {
		return b.TimeScale
	}
	return 1
}

func (e *simEnv) Declaration(p model.Pos) (distributor.Declaration, bool) {
	b := e.w.buildings[p]
	if b == nil || b.Consumer == nil {
		return distributor.Declaration{}, false
	}
	return e.w.declaration(b.Consumer), true
}

func (e *simEnv) AcceptItem(p, _ model.Pos, item string) bool {
	b := e.w.buildings[p]
	if b == nil || b.Consumer == nil {
		return false
	}
	return e.w.declaration(b.Consumer).Accepts(item) && b.Items.Free(item) > 0
}

func (e *simEnv) HandleItem(p, _ model.Pos, item string) {
	if b := e.w.buildings[p]; b != nil {
		b.Items.Add(item, 1)
	}
}

func (e *simEnv) SenderExists(p model.Pos) bool {
	b := e.w.buildings[p]
	return b != nil && b.Sender != nil
}

func (e *simEnv) NotifySender(sender model.Pos, r routing.Receiver) {
	if b := e.w.buildings[sender]; b != nil && b.Sender != nil {
		b.Sender.OnRequirementsUpdated(e, r)
	}
}
