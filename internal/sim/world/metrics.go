package world

import "github.com/yesC48/CyberIO/internal/protocol"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Buildings int `json:"buildings"`
	Nodes     int `json:"nodes"`
	Networks  int `json:"networks"`
	Observers int `json:"observers"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	Transfers protocol.TransferCounts `json:"transfers"`
	Delivered uint64                  `json:"delivered_total"`
	Crafted   uint64                  `json:"crafted_total"`
	Heals     uint64                  `json:"heals_total"`
}

type QueueDepths struct {
	Commands int `json:"commands"`
	Join     int `json:"join"`
	Leave    int `json:"leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
