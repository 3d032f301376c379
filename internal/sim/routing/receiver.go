package routing

import "github.com/yesC48/CyberIO/internal/sim/model"

// Receiver is a building that takes items from senders and advertises which
// item types it currently wants.
type Receiver interface {
	Pos() model.Pos
	Requirements() []string
	AcceptedAmount(sender model.Pos, item string) int
	ReceiveData(sender model.Pos, item string, n int) int

	SubscribeRequirements(sender model.Pos)
	UnsubscribeRequirements(sender model.Pos)

	CanAcceptSender(sender model.Pos) bool
	ConnectSender(sender model.Pos)
	DisconnectSender(sender model.Pos)
}

// Notifier is an ordered list of sender positions interested in one
// receiver's requirement changes. Delivery is synchronous and listeners
// must not notify again.
type Notifier struct {
	subs []model.Pos
}

func (n *Notifier) Subscribe(p model.Pos) bool {
	for _, q := range n.subs {
		if q == p {
			return false
		}
	}
	n.subs = append(n.subs, p)
	return true
}

func (n *Notifier) Unsubscribe(p model.Pos) bool {
	for i, q := range n.subs {
		if q == p {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (n *Notifier) Len() int { return len(n.subs) }

func (n *Notifier) Subscribers() []model.Pos {
	return append([]model.Pos(nil), n.subs...)
}

// Notify calls deliver once per subscriber in subscription order.
func (n *Notifier) Notify(deliver func(sender model.Pos)) {
	if deliver == nil {
		return
	}
	for _, p := range n.Subscribers() {
		deliver(p)
	}
}
