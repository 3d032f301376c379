package world

import (
	"github.com/yesC48/CyberIO/internal/sim/catalogs"
	"github.com/yesC48/CyberIO/internal/sim/distributor"
	"github.com/yesC48/CyberIO/internal/sim/model"
)

// Consumer eats items handed over by an adjacent distributor and crafts
// every CraftTicks of powered time.
type Consumer struct {
	Kind   distributor.Kind
	Items  []model.ItemStack
	Phases [][]model.ItemStack
	Tags   []string
	Output *model.ItemStack

	Phase    int
	Progress float64
	Crafted  int

	craftTicks float64
}

func newConsumer(def catalogs.BlockDef, craftTicks int) *Consumer {
	kind, _ := distributor.ParseKind(def.Consume.Kind)
	c := &Consumer{
		Kind:       kind,
		Items:      def.Consume.Items,
		Phases:     def.Consume.Phases,
		Tags:       def.Consume.Tags,
		Output:     def.Output,
		craftTicks: float64(craftTicks),
	}
	if c.craftTicks <= 0 {
		c.craftTicks = 1
	}
	return c
}

// Stacks is the current input list; for the dynamic kind it follows Phase.
func (c *Consumer) Stacks() []model.ItemStack {
	switch c.Kind {
	case distributor.KindItems:
		return c.Items
	case distributor.KindDynamic:
		if len(c.Phases) == 0 {
			return nil
		}
		return c.Phases[c.Phase%len(c.Phases)]
	}
	return nil
}

func (c *Consumer) SetPhase(i int) bool {
	if c.Kind != distributor.KindDynamic || i < 0 || i >= len(c.Phases) {
		return false
	}
	c.Phase = i
	return true
}

func (w *World) declaration(c *Consumer) distributor.Declaration {
	d := distributor.Declaration{Kind: c.Kind}
	switch c.Kind {
	case distributor.KindItems:
		d.Items = c.Items
	case distributor.KindDynamic:
		d.Dynamic = c.Stacks
	case distributor.KindFilter:
		tags := c.Tags
		d.Filter = func(item string) bool {
			def, ok := w.catalogs.Items.Defs[item]
			if !ok {
				return false
			}
			for _, t := range tags {
				if def.Tagged(t) {
					return true
				}
			}
			return false
		}
	}
	return d
}

// tickConsumer advances one consumer and returns how many crafts finished.
func (w *World) tickConsumer(b *Building) int {
	c := b.Consumer
	decl := w.declaration(c)

	var input []model.ItemStack
	switch c.Kind {
	case distributor.KindFilter:
		for _, st := range b.Items.List() {
			if decl.Accepts(st.Item) {
				input = []model.ItemStack{{Item: st.Item, Count: 1}}
				break
			}
		}
		if len(input) == 0 {
			return 0
		}
	default:
		input = c.Stacks()
		if len(input) == 0 {
			return 0
		}
		for _, st := range input {
			if b.Items.Count(st.Item) < st.Count {
				return 0
			}
		}
		if c.Output != nil && b.Items.Free(c.Output.Item) < c.Output.Count {
			return 0
		}
	}
	if b.Efficiency <= 0 {
		return 0
	}

	c.Progress += b.TimeScale * b.Efficiency
	if c.Progress < c.craftTicks {
		return 0
	}
	c.Progress -= c.craftTicks
	for _, st := range input {
		b.Items.Remove(st.Item, st.Count)
	}
	if c.Output != nil {
		b.Items.Add(c.Output.Item, c.Output.Count)
	}
	c.Crafted++
	if c.Kind == distributor.KindDynamic && len(c.Phases) > 0 {
		c.Phase = (c.Phase + 1) % len(c.Phases)
	}
	return 1
}
