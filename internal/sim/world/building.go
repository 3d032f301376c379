package world

import (
	"github.com/yesC48/CyberIO/internal/sim/catalogs"
	"github.com/yesC48/CyberIO/internal/sim/datanet"
	"github.com/yesC48/CyberIO/internal/sim/distributor"
	"github.com/yesC48/CyberIO/internal/sim/model"
	"github.com/yesC48/CyberIO/internal/sim/routing"
)

// Building is one occupied tile. Capabilities are optional records; a nil
// record means the block does not have that role. Every role shares Items.
type Building struct {
	ID    string
	Block string
	Pos   model.Pos
	Def   catalogs.BlockDef

	Items      *model.Inventory
	Efficiency float64
	TimeScale  float64

	Node        *datanet.Node
	Sender      *routing.Sender
	Distributor *distributor.Distributor
	Consumer    *Consumer
	Storage     bool
}

func (w *World) newBuilding(def catalogs.BlockDef, p model.Pos) *Building {
	tu := w.cfg.Tuning
	b := &Building{
		ID:         model.BuildingID(def.ID, p),
		Block:      def.ID,
		Pos:        p,
		Def:        def,
		Efficiency: 1,
		TimeScale:  1,
	}

	capacity := def.Capacity
	if capacity <= 0 {
		switch {
		case def.Has(catalogs.RoleSender):
			capacity = tu.Unloader.Capacity
		case def.Has(catalogs.RoleDistributor):
			capacity = tu.Distributor.Capacity
		case def.Has(catalogs.RoleConsumer):
			capacity = tu.Consumer.Capacity
		default:
			capacity = tu.Network.DataCapacity
		}
	}
	b.Items = model.NewInventory(capacity)

	if def.Has(catalogs.RoleNode) {
		linkRange := def.LinkRange
		if linkRange <= 0 {
			linkRange = tu.Network.LinkRange
		}
		b.Node = datanet.NewNode(p, linkRange, capacity, sideEnable(def.Sides))
		b.Node.Buffer = b.Items
	}
	if def.Has(catalogs.RoleSender) {
		b.Sender = routing.NewSender(p, capacity, routing.SenderConfig{
			MaxConnections:     tu.Unloader.MaxConnections,
			TrackerSize:        tu.Unloader.TrackerSize,
			MaxRange:           tu.Unloader.MaxRange,
			UnloadSpeed:        tu.Unloader.UnloadSpeed,
			MaxAttempts:        tu.MaxAttempts,
			PowerBase:          tu.Unloader.PowerBase,
			PowerPerItem:       tu.Unloader.PowerPerItem,
			PowerPerConnection: tu.Unloader.PowerPerConnection,
		})
		b.Sender.Buffer = b.Items
	}
	if def.Has(catalogs.RoleDistributor) {
		b.Distributor = distributor.New(p, capacity, distributor.Config{
			MaxConnections:    tu.Distributor.MaxConnections,
			MaxAttempts:       tu.MaxAttempts,
			DynamicEveryTicks: tu.Distributor.DynamicEveryTicks,
			PowerBase:         tu.Distributor.PowerBase,
			PowerPerItem:      tu.Distributor.PowerPerItem,
		})
		b.Distributor.Buffer = b.Items
	}
	if def.Has(catalogs.RoleConsumer) && def.Consume != nil {
		b.Consumer = newConsumer(def, tu.Consumer.CraftTicks)
	}
	b.Storage = def.Has(catalogs.RoleStorage) && def.Unloadable
	return b
}

func sideEnable(sides []string) datanet.SideEnable {
	if len(sides) == 0 {
		return datanet.AllSides()
	}
	var e datanet.SideEnable
	for _, name := range sides {
		if s, ok := datanet.ParseSide(name); ok {
			e[s] = true
		}
	}
	return e
}

// PowerUse is the building's reported demand; zero for passive blocks.
func (b *Building) PowerUse() float64 {
	switch {
	case b.Sender != nil:
		return b.Sender.PowerUse()
	case b.Distributor != nil:
		return b.Distributor.PowerUse()
	}
	return 0
}
