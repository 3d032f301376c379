package routing

import (
	"math"

	"github.com/yesC48/CyberIO/internal/sim/model"
)

type SenderConfig struct {
	MaxConnections int     // receivers per sender; negative means unlimited
	TrackerSize    int     // receivers per item tracker
	MaxRange       float64 // non-positive means unlimited
	UnloadSpeed    float64 // ticks between unload rounds
	MaxAttempts    int

	PowerBase          float64
	PowerPerItem       float64
	PowerPerConnection float64
}

// SenderEnv is the host view a sender needs each tick.
type SenderEnv interface {
	Receiver(p model.Pos) Receiver
	Unloadable(p model.Pos) *model.Inventory
	Proximity(p model.Pos) []model.Pos
	WorldChanges() uint64
	Efficiency(p model.Pos) float64
	TimeScale(p model.Pos) float64
}

type ConnectReject int

const (
	ConnectOK ConnectReject = iota
	ConnectDuplicate
	ConnectOutOfRange
	ConnectSenderFull
	ConnectReceiverFull
	ConnectNotReceiver
)

type TickResult struct {
	Unloaded int
	Sent     int
}

// Sender pulls items out of adjacent storage and pushes them to explicitly
// connected receivers, one tracker per item type.
type Sender struct {
	pos    model.Pos
	cfg    SenderConfig
	Buffer *model.Inventory

	receivers  []model.Pos
	trackers   map[string]*Tracker
	needUnload []string

	nearby      []model.Pos
	unloadIndex int
	unloadTimer float64

	lastWorldChange uint64
	seenWorld       bool

	SinceUnload  float64
	SinceSend    float64
	JustRestored bool
}

func NewSender(pos model.Pos, capacity int, cfg SenderConfig) *Sender {
	return &Sender{
		pos:      pos,
		cfg:      cfg,
		Buffer:   model.NewInventory(capacity),
		trackers: map[string]*Tracker{},
	}
}

func (s *Sender) Pos() model.Pos { return s.pos }

func (s *Sender) Receivers() []model.Pos {
	return append([]model.Pos(nil), s.receivers...)
}

func (s *Sender) NeedUnloadItems() []string {
	return append([]string(nil), s.needUnload...)
}

func (s *Sender) Nearby() []model.Pos {
	return append([]model.Pos(nil), s.nearby...)
}

// Tracker returns the tracker for item, or nil when none was built.
func (s *Sender) Tracker(item string) *Tracker { return s.trackers[item] }

func (s *Sender) HasReceiver(p model.Pos) bool {
	for _, q := range s.receivers {
		if q == p {
			return true
		}
	}
	return false
}

func (s *Sender) CanHaveMoreReceivers() bool {
	return s.cfg.MaxConnections < 0 || len(s.receivers) < s.cfg.MaxConnections
}

func (s *Sender) CheckConnect(r Receiver) ConnectReject {
	if r == nil {
		return ConnectNotReceiver
	}
	if s.HasReceiver(r.Pos()) {
		return ConnectDuplicate
	}
	if s.cfg.MaxRange > 0 && s.pos.Dst(r.Pos()) >= s.cfg.MaxRange {
		return ConnectOutOfRange
	}
	if !s.CanHaveMoreReceivers() {
		return ConnectSenderFull
	}
	if !r.CanAcceptSender(s.pos) {
		return ConnectReceiverFull
	}
	return ConnectOK
}

func (s *Sender) Connect(env SenderEnv, r Receiver) ConnectReject {
	if why := s.CheckConnect(r); why != ConnectOK {
		return why
	}
	s.receivers = append(s.receivers, r.Pos())
	r.SubscribeRequirements(s.pos)
	r.ConnectSender(s.pos)
	s.Rebuild(env)
	return ConnectOK
}

func (s *Sender) Disconnect(env SenderEnv, p model.Pos) bool {
	if !s.dropReceiver(p) {
		return false
	}
	if r := env.Receiver(p); r != nil {
		r.UnsubscribeRequirements(s.pos)
		r.DisconnectSender(s.pos)
	}
	s.Rebuild(env)
	return true
}

func (s *Sender) ClearReceivers(env SenderEnv) {
	for _, p := range s.receivers {
		if r := env.Receiver(p); r != nil {
			r.UnsubscribeRequirements(s.pos)
			r.DisconnectSender(s.pos)
		}
	}
	s.receivers = nil
	s.Rebuild(env)
}

// RestoreReceivers installs a persisted receiver set. Trackers are rebuilt on
// the next tick, once every neighbor has been restored.
func (s *Sender) RestoreReceivers(list []model.Pos) {
	s.receivers = s.receivers[:0]
	for _, p := range list {
		if p != model.PosEmpty && !s.HasReceiver(p) {
			s.receivers = append(s.receivers, p)
		}
	}
	s.JustRestored = true
}

// Rebuild recomputes every tracker from the receivers' current requirements
// in connection order. Receivers beyond a tracker's capacity are left out.
func (s *Sender) Rebuild(env SenderEnv) {
	for _, t := range s.trackers {
		t.Clear()
	}
	s.needUnload = s.needUnload[:0]
	for _, p := range s.receivers {
		r := env.Receiver(p)
		if r == nil {
			continue
		}
		for _, item := range r.Requirements() {
			t := s.trackers[item]
			if t == nil {
				t = NewTracker(s.cfg.TrackerSize)
				s.trackers[item] = t
			}
			if !t.CanAddMore() {
				continue
			}
			if t.Subscribe(p) {
				s.addNeed(item)
			}
		}
	}
}

func (s *Sender) OnRequirementsUpdated(env SenderEnv, _ Receiver) {
	s.Rebuild(env)
}

// UpdateNearby rescans adjacent storage after a proximity change.
func (s *Sender) UpdateNearby(env SenderEnv) {
	s.nearby = s.nearby[:0]
	for _, p := range env.Proximity(s.pos) {
		if env.Unloadable(p) != nil {
			s.nearby = append(s.nearby, p)
		}
	}
	s.unloadIndex = 0
	s.Rebuild(env)
}

func (s *Sender) Tick(env SenderEnv) TickResult {
	var res TickResult
	if wc := env.WorldChanges(); !s.seenWorld || wc != s.lastWorldChange {
		s.seenWorld = true
		s.lastWorldChange = wc
		s.checkReceivers(env)
	}
	if s.JustRestored {
		for _, p := range s.receivers {
			if r := env.Receiver(p); r != nil {
				r.SubscribeRequirements(s.pos)
			}
		}
		s.Rebuild(env)
		s.JustRestored = false
	}
	ts := env.TimeScale(s.pos)
	s.SinceUnload += ts
	s.SinceSend += ts
	if len(s.receivers) == 0 || env.Efficiency(s.pos) <= 0 {
		return res
	}
	attempts := AttemptCount(ts, s.cfg.MaxAttempts)

	s.unloadTimer += ts
	if s.unloadTimer >= s.cfg.UnloadSpeed {
		if s.cfg.UnloadSpeed > 0 {
			s.unloadTimer = math.Mod(s.unloadTimer, s.cfg.UnloadSpeed)
		} else {
			s.unloadTimer = 0
		}
		for i := 0; i < attempts; i++ {
			res.Unloaded += s.unload(env)
		}
		if res.Unloaded > 0 {
			s.SinceUnload = 0
		}
	}
	for i := 0; i < attempts; i++ {
		res.Sent += s.send(env)
	}
	if res.Sent > 0 {
		s.SinceSend = 0
	}
	return res
}

// PowerUse is the demand this sender would draw, reported as status only.
func (s *Sender) PowerUse() float64 {
	return s.cfg.PowerBase +
		s.cfg.PowerPerItem*float64(len(s.needUnload)) +
		s.cfg.PowerPerConnection*float64(len(s.receivers))
}

func (s *Sender) unload(env SenderEnv) int {
	if len(s.nearby) == 0 {
		return 0
	}
	s.unloadIndex %= len(s.nearby)
	inv := env.Unloadable(s.nearby[s.unloadIndex])
	s.unloadIndex = (s.unloadIndex + 1) % len(s.nearby)
	if inv == nil {
		return 0
	}
	n := 0
	for _, item := range s.needUnload {
		if s.Buffer.Free(item) <= 0 || !inv.Has(item) {
			continue
		}
		inv.Remove(item, 1)
		s.Buffer.Add(item, 1)
		n++
	}
	return n
}

func (s *Sender) send(env SenderEnv) int {
	n := 0
	for _, item := range s.needUnload {
		t := s.trackers[item]
		if t == nil || t.Len() == 0 {
			continue
		}
		p, _ := t.PickNext()
		if !s.Buffer.Has(item) {
			continue
		}
		r := env.Receiver(p)
		if r == nil || r.AcceptedAmount(s.pos, item) < 1 {
			continue
		}
		// Only what the receiver actually took leaves the buffer.
		got := r.ReceiveData(s.pos, item, 1)
		if got < 1 {
			continue
		}
		s.Buffer.Remove(item, got)
		n += got
	}
	return n
}

// checkReceivers forgets receivers that no longer exist in the world.
func (s *Sender) checkReceivers(env SenderEnv) {
	kept := s.receivers[:0]
	changed := false
	for _, p := range s.receivers {
		if env.Receiver(p) == nil {
			changed = true
			continue
		}
		kept = append(kept, p)
	}
	s.receivers = kept
	if changed {
		s.Rebuild(env)
	}
}

func (s *Sender) dropReceiver(p model.Pos) bool {
	for i, q := range s.receivers {
		if q == p {
			s.receivers = append(s.receivers[:i], s.receivers[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Sender) addNeed(item string) {
	for _, it := range s.needUnload {
		if it == item {
			return
		}
	}
	s.needUnload = append(s.needUnload, item)
}
