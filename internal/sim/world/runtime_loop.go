package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingCommands []CommandRequest
	var pendingAdmin []adminReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case req := <-w.commands:
			pendingCommands = append(pendingCommands, req)
		case <-ticker.C:
			w.stepInternal(pendingCommands)
			w.serveAdmin(pendingAdmin)
			pendingCommands = pendingCommands[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// Submit queues a command for the next tick without blocking. It reports
// false when the inbox is full; callers answer E_WORLD_BUSY.
func (w *World) Submit(req CommandRequest) bool {
	select {
	case w.commands <- req:
		return true
	default:
		return false
	}
}

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
// Observer joins and leaves already queued on the channels are applied first,
// as the loop would between ticks.
func (w *World) StepOnce(cmds []CommandRequest) (tick uint64, digest string) {
	for drained := false; !drained; {
		select {
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		default:
			drained = true
		}
	}
	tick = w.tick.Load()
	w.stepInternal(cmds)
	return tick, w.stateDigest(tick)
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
