package distributor

import (
	"testing"

	"github.com/yesC48/CyberIO/internal/sim/model"
	"github.com/yesC48/CyberIO/internal/sim/routing"
)

type fakeConsumer struct {
	decl Declaration
	inv  *model.Inventory
}

type fakeEnv struct {
	prox      []model.Pos
	consumers map[model.Pos]*fakeConsumer
	senders   map[model.Pos]bool
	notified  []model.Pos
	changes   uint64
	eff       float64
	scale     float64
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		consumers: map[model.Pos]*fakeConsumer{},
		senders:   map[model.Pos]bool{},
		eff:       1,
		scale:     1,
	}
}

func (e *fakeEnv) place(p model.Pos, decl Declaration) *fakeConsumer {
	c := &fakeConsumer{decl: decl, inv: model.NewInventory(10)}
	e.consumers[p] = c
	e.prox = append(e.prox, p)
	return c
}

func (e *fakeEnv) Proximity(model.Pos) []model.Pos { return e.prox }
func (e *fakeEnv) Declaration(p model.Pos) (Declaration, bool) {
	c, ok := e.consumers[p]
	if !ok {
		return Declaration{}, false
	}
	return c.decl, true
}
func (e *fakeEnv) AcceptItem(p, _ model.Pos, item string) bool {
	c := e.consumers[p]
	return c != nil && c.decl.Accepts(item) && c.inv.Free(item) > 0
}
func (e *fakeEnv) HandleItem(p, _ model.Pos, item string) { e.consumers[p].inv.Add(item, 1) }
func (e *fakeEnv) ItemTypes() []string                    { return []string{"copper", "lead", "silicon"} }
func (e *fakeEnv) SenderExists(p model.Pos) bool          { return e.senders[p] }
func (e *fakeEnv) NotifySender(s model.Pos, _ routing.Receiver) {
	e.notified = append(e.notified, s)
}
func (e *fakeEnv) WorldChanges() uint64         { return e.changes }
func (e *fakeEnv) Efficiency(model.Pos) float64 { return e.eff }
func (e *fakeEnv) TimeScale(model.Pos) float64  { return e.scale }

func items(names ...string) Declaration {
	d := Declaration{Kind: KindItems}
	for _, n := range names {
		d.Items = append(d.Items, model.ItemStack{Item: n, Count: 1})
	}
	return d
}

func testConfig() Config {
	return Config{MaxConnections: -1, MaxAttempts: 8, DynamicEveryTicks: 1}
}

func TestUpdateRequirements_UnionAndNotify(t *testing.T) {
	env := newFakeEnv()
	d := New(model.Pack(0, 0), 50, testConfig())
	sender := model.Pack(9, 9)
	d.SubscribeRequirements(sender)

	if d.UpdateRequirements(env) {
		t.Fatalf("empty proximity reported a change")
	}
	env.place(model.Pack(1, 0), items("lead", "copper"))
	env.place(model.Pack(0, 1), Declaration{Kind: KindFilter, Filter: func(i string) bool { return i == "silicon" }})
	if !d.UpdateRequirements(env) {
		t.Fatalf("expected change")
	}
	got := d.Requirements()
	if len(got) != 3 || got[0] != "copper" || got[1] != "lead" || got[2] != "silicon" {
		t.Fatalf("requirements=%v", got)
	}
	if len(env.notified) != 1 || env.notified[0] != sender {
		t.Fatalf("notified=%v", env.notified)
	}

	// same set in another order is not a change
	env.consumers[model.Pack(1, 0)].decl = items("copper", "lead")
	if d.UpdateRequirements(env) || len(env.notified) != 1 {
		t.Fatalf("reordered declaration fired a notification")
	}
}

func TestAcceptedAmount(t *testing.T) {
	env := newFakeEnv()
	d := New(model.Pack(0, 0), 50, testConfig())
	if d.AcceptedAmount(model.Pack(5, 5), "copper") != 0 {
		t.Fatalf("accepted without requirement")
	}
	env.place(model.Pack(1, 0), items("copper"))
	d.UpdateRequirements(env)
	d.Buffer.Add("copper", 20)
	if got := d.AcceptedAmount(model.Pack(5, 5), "copper"); got != 30 {
		t.Fatalf("accepted=%d want 30", got)
	}
	d.SetEfficiency(0)
	if d.AcceptedAmount(model.Pack(5, 5), "copper") != 0 {
		t.Fatalf("accepted without power")
	}
}

func TestReceiveData_OnlyFromConnectedSenders(t *testing.T) {
	d := New(model.Pack(0, 0), 50, testConfig())
	s := model.Pack(3, 0)
	if d.ReceiveData(s, "copper", 1) != 0 {
		t.Fatalf("accepted from stranger")
	}
	d.ConnectSender(s)
	if d.ReceiveData(s, "copper", 2) != 2 || d.Buffer.Count("copper") != 2 {
		t.Fatalf("connected sender refused")
	}
}

func TestCanAcceptSender_Limit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	d := New(model.Pack(0, 0), 50, cfg)
	d.ConnectSender(model.Pack(1, 0))
	if d.CanAcceptSender(model.Pack(2, 0)) {
		t.Fatalf("limit ignored")
	}
	if !d.CanAcceptSender(model.Pack(1, 0)) {
		t.Fatalf("existing sender refused")
	}
}

func TestDistribute_RoundRobinOneUnit(t *testing.T) {
	env := newFakeEnv()
	a := env.place(model.Pack(1, 0), items("copper"))
	b := env.place(model.Pack(0, 1), items("copper"))
	d := New(model.Pack(0, 0), 50, testConfig())
	d.Buffer.Add("copper", 4)

	for i := 0; i < 4; i++ {
		if !d.Distribute(env) {
			t.Fatalf("distribute %d failed", i)
		}
	}
	if a.inv.Count("copper") != 2 || b.inv.Count("copper") != 2 {
		t.Fatalf("a=%d b=%d", a.inv.Count("copper"), b.inv.Count("copper"))
	}
	if d.Buffer.Total() != 0 {
		t.Fatalf("stock left %d", d.Buffer.Total())
	}
	if d.Distribute(env) {
		t.Fatalf("distributed from empty buffer")
	}
}

func TestDistribute_ItemsStopsAtFirstSuccess(t *testing.T) {
	env := newFakeEnv()
	c := env.place(model.Pack(1, 0), items("lead", "copper"))
	d := New(model.Pack(0, 0), 50, testConfig())
	d.Buffer.Add("copper", 1)
	d.Buffer.Add("lead", 1)
	d.Distribute(env)
	if c.inv.Count("lead") != 1 || c.inv.Count("copper") != 0 {
		t.Fatalf("consumer got %+v", c.inv.List())
	}
}

func TestDistribute_FilterVariant(t *testing.T) {
	env := newFakeEnv()
	c := env.place(model.Pack(1, 0), Declaration{Kind: KindFilter, Filter: func(i string) bool { return i != "copper" }})
	d := New(model.Pack(0, 0), 50, testConfig())
	d.Buffer.Add("copper", 3)
	if d.Distribute(env) {
		t.Fatalf("filtered item distributed")
	}
	d.Buffer.Add("silicon", 1)
	if !d.Distribute(env) || c.inv.Count("silicon") != 1 {
		t.Fatalf("filter variant did not deliver")
	}
}

func TestTick_DynamicRefreshAndGate(t *testing.T) {
	env := newFakeEnv()
	want := []model.ItemStack{{Item: "copper", Count: 1}}
	env.place(model.Pack(1, 0), Declaration{Kind: KindDynamic, Dynamic: func() []model.ItemStack { return want }})
	d := New(model.Pack(0, 0), 50, testConfig())
	d.UpdateRequirements(env)
	if !d.HasDynamic || !d.Required("copper") {
		t.Fatalf("dynamic declaration not picked up")
	}

	want = []model.ItemStack{{Item: "lead", Count: 1}}
	d.Tick(env)
	if !d.Required("lead") || d.Required("copper") {
		t.Fatalf("dynamic refresh missed: %v", d.Requirements())
	}

	env.eff = 0
	d.Buffer.Add("lead", 1)
	if n := d.Tick(env); n != 0 {
		t.Fatalf("distributed without power")
	}
	env.eff = 1
	if n := d.Tick(env); n != 1 {
		t.Fatalf("distributed %d want 1", n)
	}
}

func TestTick_DropsVanishedSenders(t *testing.T) {
	env := newFakeEnv()
	d := New(model.Pack(0, 0), 50, testConfig())
	s := model.Pack(4, 0)
	env.senders[s] = true
	d.ConnectSender(s)
	d.Tick(env)
	delete(env.senders, s)
	env.changes++
	d.Tick(env)
	if len(d.Senders()) != 0 {
		t.Fatalf("vanished sender kept")
	}
}

func TestPowerUse(t *testing.T) {
	env := newFakeEnv()
	env.place(model.Pack(1, 0), items("copper", "lead"))
	d := New(model.Pack(0, 0), 50, Config{PowerBase: 3, PowerPerItem: 2.5})
	d.UpdateRequirements(env)
	if d.PowerUse() != 8 {
		t.Fatalf("power=%v", d.PowerUse())
	}
}
