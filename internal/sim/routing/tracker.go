package routing

import (
	"math"

	"github.com/yesC48/CyberIO/internal/sim/model"
)

// Tracker is one sender's subscription list for one item type. The cursor is
// always read modulo the current length so shrinking never skips a receiver.
type Tracker struct {
	receivers []model.Pos
	cursor    int
	capacity  int
}

// NewTracker returns a tracker holding at most capacity receivers; a
// non-positive capacity means unbounded.
func NewTracker(capacity int) *Tracker {
	return &Tracker{capacity: capacity}
}

func (t *Tracker) CanAddMore() bool {
	return t.capacity <= 0 || len(t.receivers) < t.capacity
}

func (t *Tracker) Subscribe(p model.Pos) bool {
	if !t.CanAddMore() || t.Contains(p) {
		return false
	}
	t.receivers = append(t.receivers, p)
	return true
}

func (t *Tracker) Unsubscribe(p model.Pos) bool {
	for i, q := range t.receivers {
		if q == p {
			t.receivers = append(t.receivers[:i], t.receivers[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Tracker) Contains(p model.Pos) bool {
	for _, q := range t.receivers {
		if q == p {
			return true
		}
	}
	return false
}

// PickNext returns the receiver under the cursor and advances it.
func (t *Tracker) PickNext() (model.Pos, bool) {
	if len(t.receivers) == 0 {
		return model.PosEmpty, false
	}
	p := t.receivers[t.cursor%len(t.receivers)]
	t.cursor = (t.cursor + 1) % len(t.receivers)
	return p, true
}

// Clear drops every receiver but keeps the cursor.
func (t *Tracker) Clear() { t.receivers = t.receivers[:0] }

func (t *Tracker) Len() int      { return len(t.receivers) }
func (t *Tracker) Capacity() int { return t.capacity }
func (t *Tracker) Cursor() int   { return t.cursor }

func (t *Tracker) Receivers() []model.Pos {
	return append([]model.Pos(nil), t.receivers...)
}

// AttemptCount maps a time scale to how many unload/send rounds run per tick.
func AttemptCount(timeScale float64, maxAttempts int) int {
	var n int
	switch {
	case timeScale <= 1.1:
		n = 1
	case timeScale <= 2.1:
		n = 2
	case timeScale <= 3:
		n = 3
	default:
		n = int(math.Round(math.Log2(timeScale + 5.1)))
	}
	if maxAttempts > 0 && n > maxAttempts {
		n = maxAttempts
	}
	if n < 1 {
		n = 1
	}
	return n
}
