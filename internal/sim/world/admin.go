package world

import (
	"context"
	"errors"

	"github.com/yesC48/CyberIO/internal/sim/datanet"
)

var (
	ErrAdminUnavailable = errors.New("world: admin requests unavailable")
	ErrNoSnapshotSink   = errors.New("world: snapshot sink not configured")
	ErrSnapshotBusy     = errors.New("world: snapshot sink busy")
)

type adminOp uint8

const (
	adminSnapshot adminOp = iota + 1
	adminCheckTopology
)

type adminReq struct {
	op   adminOp
	resp chan AdminResult
}

// AdminResult answers one admin request. Tick is the last finished tick.
type AdminResult struct {
	Tick       uint64
	Violations []datanet.Violation
	Err        error
}

// RequestSnapshot pushes a snapshot of the last finished tick into the sink.
func (w *World) RequestSnapshot(ctx context.Context) (uint64, error) {
	res, err := w.submitAdmin(ctx, adminSnapshot)
	if err != nil {
		return 0, err
	}
	return res.Tick, res.Err
}

// CheckTopology runs the link symmetry check between ticks.
func (w *World) CheckTopology(ctx context.Context) (uint64, []datanet.Violation, error) {
	res, err := w.submitAdmin(ctx, adminCheckTopology)
	if err != nil {
		return 0, nil, err
	}
	return res.Tick, res.Violations, nil
}

func (w *World) submitAdmin(ctx context.Context, op adminOp) (AdminResult, error) {
	if w == nil || w.admin == nil {
		return AdminResult{}, ErrAdminUnavailable
	}
	req := adminReq{op: op, resp: make(chan AdminResult, 1)}
	select {
	case w.admin <- req:
	case <-ctx.Done():
		return AdminResult{}, ctx.Err()
	}
	select {
	case res := <-req.resp:
		return res, nil
	case <-ctx.Done():
		return AdminResult{}, ctx.Err()
	}
}

// serveAdmin answers the requests queued during the last tick. Snapshot
// requests in one batch share a single export.
func (w *World) serveAdmin(reqs []adminReq) {
	if len(reqs) == 0 {
		return
	}
	var done uint64
	if cur := w.tick.Load(); cur > 0 {
		done = cur - 1
	}

	var snapErr error
	snapped := false
	for _, r := range reqs {
		res := AdminResult{Tick: done}
		switch r.op {
		case adminSnapshot:
			if !snapped {
				snapErr = w.pushSnapshot(done)
				snapped = true
			}
			res.Err = snapErr
		case adminCheckTopology:
			res.Violations = w.graph.CheckSymmetry()
		}
		select {
		case r.resp <- res:
		default:
			// caller gave up; never block the loop
		}
	}
}

func (w *World) pushSnapshot(tick uint64) error {
	if w.snapshotSink == nil {
		return ErrNoSnapshotSink
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot(tick):
		return nil
	default:
		return ErrSnapshotBusy
	}
}
