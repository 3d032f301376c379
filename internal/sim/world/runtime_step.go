package world

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yesC48/CyberIO/internal/observability"
	"github.com/yesC48/CyberIO/internal/protocol"
	"github.com/yesC48/CyberIO/internal/sim/datanet"
)

func (w *World) stepInternal(cmds []CommandRequest) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	_, span := w.tracer.Start(context.Background(), "world.step",
		trace.WithAttributes(attribute.Int64("tick", int64(nowTick))))
	defer span.End()

	w.graph.SetTick(nowTick)

	// Commands in receive order.
	recorded := make([]RecordedCommand, 0, len(cmds))
	results := make([]protocol.CommandResultMsg, 0, len(cmds))
	for _, req := range cmds {
		res := w.applyCommand(req.Actor, req.Cmd, nowTick)
		recorded = append(recorded, RecordedCommand{Actor: req.Actor, Cmd: req.Cmd})
		results = append(results, res)
		if req.Resp != nil {
			select {
			case req.Resp <- res:
			default:
			}
		}
	}

	// Systems: senders -> distributors -> consumers -> network transfers.
	var tc protocol.TransferCounts
	order := w.positions()
	for _, p := range order {
		if b := w.buildings[p]; b.Sender != nil {
			r := b.Sender.Tick(w.env)
			tc.Unloaded += r.Unloaded
			tc.Sent += r.Sent
		}
	}
	for _, p := range order {
		if b := w.buildings[p]; b.Distributor != nil {
			tc.Distributed += b.Distributor.Tick(w.env)
		}
	}
	for _, p := range order {
		if b := w.buildings[p]; b.Consumer != nil {
			tc.Crafted += w.tickConsumer(b)
		}
	}
	w.crafted += uint64(tc.Crafted)

	ts := w.graph.StepTransfers(w.cfg.Tuning.TransferSpeed, func(datanet.Delivery) { w.delivered++ })
	tc.Hops = ts.Hops
	tc.Delivered = ts.Delivered
	tc.Missed = ts.Missed

	stats := w.graph.Stats()
	heals := stats.Heals - w.lastGraphStats.Heals
	if heals > 0 {
		w.logger.Printf("datanet: healed %d desynced links at tick %d", heals, nowTick)
	}
	w.collector.AddGraphDelta(stats.ReflowVisits-w.lastGraphStats.ReflowVisits, heals)
	w.lastGraphStats = stats

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		err := w.tickLogger.WriteTick(TickLogEntry{
			Tick:      nowTick,
			Commands:  recorded,
			Transfers: tc,
			Results:   results,
			Digest:    digest,
		})
		if err != nil {
			w.logger.Printf("tick log: %v", err)
		}
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		every := uint64(w.cfg.SnapshotEveryTicks)
		if nowTick%every == 0 {
			select {
			case w.snapshotSink <- w.ExportSnapshot(nowTick):
			default:
				// Drop snapshot if sink is backed up.
				w.logger.Printf("snapshot: sink busy, dropped tick %d", nowTick)
			}
		}
	}

	w.stepObservers(nowTick, tc, stats.Heals, digest)

	w.collector.AddTransfers(observability.KindUnloaded, tc.Unloaded)
	w.collector.AddTransfers(observability.KindSent, tc.Sent)
	w.collector.AddTransfers(observability.KindDistributed, tc.Distributed)
	w.collector.AddTransfers(observability.KindCrafted, tc.Crafted)
	w.collector.AddTransfers(observability.KindHop, tc.Hops)
	w.collector.AddTransfers(observability.KindDelivered, tc.Delivered)
	w.collector.AddTransfers(observability.KindMissed, tc.Missed)
	w.collector.AddTransfers(observability.KindDropped, ts.Dropped)
	w.collector.SetTopology(w.graph.Registry().Len(), w.graph.Len())
	w.collector.SetTick(nowTick)

	stepDur := time.Since(stepStart)
	w.collector.ObserveStep(stepDur)
	nextTick := w.tick.Add(1)

	w.metrics.Store(WorldMetrics{
		Tick:      nextTick,
		Buildings: len(w.buildings),
		Nodes:     w.graph.Len(),
		Networks:  w.graph.Registry().Len(),
		Observers: len(w.observers),
		QueueDepths: QueueDepths{
			Commands: len(w.commands),
			Join:     len(w.observerJoin),
			Leave:    len(w.observerLeave),
		},
		StepMS:    float64(stepDur.Microseconds()) / 1000.0,
		Transfers: tc,
		Delivered: w.delivered,
		Crafted:   w.crafted,
		Heals:     stats.Heals,
	})
}
