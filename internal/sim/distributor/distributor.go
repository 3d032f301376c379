package distributor

import (
	"sort"

	"github.com/yesC48/CyberIO/internal/sim/model"
	"github.com/yesC48/CyberIO/internal/sim/routing"
)

type Config struct {
	MaxConnections    int // senders; negative means unlimited
	MaxAttempts       int
	DynamicEveryTicks float64
	PowerBase         float64
	PowerPerItem      float64
}

// Env is the host view a distributor needs. Proximity is the ordered list
// of physically adjacent buildings.
type Env interface {
	Proximity(p model.Pos) []model.Pos
	Declaration(p model.Pos) (Declaration, bool)
	AcceptItem(p, from model.Pos, item string) bool
	HandleItem(p, from model.Pos, item string)
	ItemTypes() []string
	SenderExists(p model.Pos) bool
	NotifySender(sender model.Pos, r routing.Receiver)
	WorldChanges() uint64
	Efficiency(p model.Pos) float64
	TimeScale(p model.Pos) float64
}

// Distributor receives items from connected senders and hands them to
// adjacent consumers round robin.
type Distributor struct {
	pos    model.Pos
	cfg    Config
	Buffer *model.Inventory

	requirements []string
	notifier     routing.Notifier
	senders      []model.Pos

	DisIndex          int
	HasDynamic        bool
	SinceDistribution float64

	efficiency      float64
	dynTimer        float64
	lastWorldChange uint64
	seenWorld       bool
}

var _ routing.Receiver = (*Distributor)(nil)

func New(pos model.Pos, capacity int, cfg Config) *Distributor {
	return &Distributor{
		pos:        pos,
		cfg:        cfg,
		Buffer:     model.NewInventory(capacity),
		efficiency: 1,
	}
}

func (d *Distributor) Pos() model.Pos { return d.pos }

func (d *Distributor) Requirements() []string {
	return append([]string(nil), d.requirements...)
}

func (d *Distributor) Required(item string) bool {
	i := sort.SearchStrings(d.requirements, item)
	return i < len(d.requirements) && d.requirements[i] == item
}

// SetEfficiency records the power gate the host computed this tick.
func (d *Distributor) SetEfficiency(e float64) { d.efficiency = e }

func (d *Distributor) Efficiency() float64 { return d.efficiency }

func (d *Distributor) AcceptedAmount(_ model.Pos, item string) int {
	if d.efficiency <= 0 || !d.Required(item) {
		return 0
	}
	return d.Buffer.Free(item)
}

func (d *Distributor) ReceiveData(sender model.Pos, item string, n int) int {
	if !d.HasSender(sender) {
		return 0
	}
	return d.Buffer.Add(item, n)
}

func (d *Distributor) SubscribeRequirements(sender model.Pos)   { d.notifier.Subscribe(sender) }
func (d *Distributor) UnsubscribeRequirements(sender model.Pos) { d.notifier.Unsubscribe(sender) }

func (d *Distributor) Subscribers() []model.Pos { return d.notifier.Subscribers() }

func (d *Distributor) CanAcceptSender(sender model.Pos) bool {
	if d.HasSender(sender) {
		return true
	}
	return d.cfg.MaxConnections < 0 || len(d.senders) < d.cfg.MaxConnections
}

func (d *Distributor) ConnectSender(sender model.Pos) {
	if !d.HasSender(sender) {
		d.senders = append(d.senders, sender)
	}
}

func (d *Distributor) DisconnectSender(sender model.Pos) {
	for i, p := range d.senders {
		if p == sender {
			d.senders = append(d.senders[:i], d.senders[i+1:]...)
			return
		}
	}
}

func (d *Distributor) HasSender(p model.Pos) bool {
	for _, q := range d.senders {
		if q == p {
			return true
		}
	}
	return false
}

func (d *Distributor) Senders() []model.Pos {
	return append([]model.Pos(nil), d.senders...)
}

// Restore installs persisted connection state.
func (d *Distributor) Restore(senders []model.Pos, disIndex int) {
	d.senders = d.senders[:0]
	for _, p := range senders {
		if p != model.PosEmpty && !d.HasSender(p) {
			d.senders = append(d.senders, p)
		}
	}
	d.DisIndex = disIndex
}

// UpdateRequirements recomputes the requirement set from adjacent consumer
// declarations and notifies subscribed senders when the set changed.
func (d *Distributor) UpdateRequirements(env Env) bool {
	set := map[string]bool{}
	d.HasDynamic = false
	for _, p := range env.Proximity(d.pos) {
		decl, ok := env.Declaration(p)
		if !ok {
			continue
		}
		if decl.Kind == KindDynamic {
			d.HasDynamic = true
		}
		for _, item := range decl.Wanted(env.ItemTypes()) {
			set[item] = true
		}
	}
	next := make([]string, 0, len(set))
	for item := range set {
		next = append(next, item)
	}
	sort.Strings(next)
	if equalStrings(next, d.requirements) {
		return false
	}
	d.requirements = next
	d.notifier.Notify(func(sender model.Pos) { env.NotifySender(sender, d) })
	return true
}

// Distribute offers at most one unit to the consumer under DisIndex and
// moves the index on.
func (d *Distributor) Distribute(env Env) bool {
	if d.Buffer.Total() == 0 {
		return false
	}
	prox := env.Proximity(d.pos)
	if len(prox) == 0 {
		return false
	}
	d.DisIndex %= len(prox)
	target := prox[d.DisIndex]
	d.DisIndex = (d.DisIndex + 1) % len(prox)

	decl, ok := env.Declaration(target)
	if !ok {
		return false
	}
	switch decl.Kind {
	case KindItems, KindDynamic:
		for _, st := range decl.Stacks() {
			if d.give(env, target, st.Item) {
				return true
			}
		}
	case KindFilter:
		for _, st := range d.Buffer.List() {
			if decl.Accepts(st.Item) && d.give(env, target, st.Item) {
				return true
			}
		}
	}
	return false
}

func (d *Distributor) give(env Env, target model.Pos, item string) bool {
	if !d.Buffer.Has(item) || !env.AcceptItem(target, d.pos, item) {
		return false
	}
	env.HandleItem(target, d.pos, item)
	d.Buffer.Remove(item, 1)
	return true
}

// Tick returns how many units were handed out.
func (d *Distributor) Tick(env Env) int {
	if wc := env.WorldChanges(); !d.seenWorld || wc != d.lastWorldChange {
		d.seenWorld = true
		d.lastWorldChange = wc
		d.checkSenders(env)
	}
	ts := env.TimeScale(d.pos)
	if d.HasDynamic {
		d.dynTimer += ts
		if d.dynTimer >= d.cfg.DynamicEveryTicks {
			d.dynTimer = 0
			d.UpdateRequirements(env)
		}
	}
	d.efficiency = env.Efficiency(d.pos)
	n := 0
	if d.efficiency > 0 {
		attempts := routing.AttemptCount(ts, d.cfg.MaxAttempts)
		for i := 0; i < attempts; i++ {
			if d.Distribute(env) {
				n++
			}
		}
		if n > 0 {
			d.SinceDistribution = 0
		}
	}
	d.SinceDistribution += ts
	return n
}

func (d *Distributor) PowerUse() float64 {
	return float64(len(d.requirements))*d.cfg.PowerPerItem + d.cfg.PowerBase
}

func (d *Distributor) checkSenders(env Env) {
	kept := d.senders[:0]
	for _, p := range d.senders {
		if env.SenderExists(p) {
			kept = append(kept, p)
		}
	}
	d.senders = kept
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
