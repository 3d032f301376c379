package world

import (
	"fmt"
	"io"
	"log"
	"sort"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/yesC48/CyberIO/internal/observability"
	"github.com/yesC48/CyberIO/internal/persistence/snapshot"
	"github.com/yesC48/CyberIO/internal/sim/catalogs"
	"github.com/yesC48/CyberIO/internal/sim/datanet"
	"github.com/yesC48/CyberIO/internal/sim/model"
)

// World is a single-threaded authoritative simulation of one grid and its
// data networks. All state must be accessed only from the world loop
// goroutine; the channels below are the only way in.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	logger   *log.Logger
	runID    string

	tick atomic.Uint64

	grid      []uint16
	buildings map[model.Pos]*Building
	graph     *datanet.Graph
	env       *simEnv

	// worldChanges increases on every placement or removal. Senders and
	// distributors compare it each tick to notice vanished peers.
	worldChanges uint64
	order        []model.Pos
	orderAt      uint64
	orderValid   bool

	itemTypes []string

	delivered uint64
	crafted   uint64

	lastGraphStats datanet.Stats

	commands      chan CommandRequest
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	admin         chan adminReq
	stop          chan struct{}

	observers map[string]chan []byte

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger   TickLogger
	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.SnapshotV1

	collector *observability.Collector
	tracer    trace.Tracer

	metrics atomic.Value // WorldMetrics
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	if _, ok := cats.Blocks.Index["AIR"]; !ok {
		return nil, fmt.Errorf("world: missing block id in palette: AIR")
	}
	cfg.applyDefaults()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}

	w := &World{
		cfg:           cfg,
		catalogs:      cats,
		logger:        log.New(io.Discard, "", 0),
		grid:          make([]uint16, cfg.Width*cfg.Height),
		buildings:     map[model.Pos]*Building{},
		graph:         datanet.NewGraph(),
		itemTypes:     append([]string(nil), cats.Items.Palette...),
		commands:      make(chan CommandRequest, 1024),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		admin:         make(chan adminReq, 4),
		stop:          make(chan struct{}),
		observers:     map[string]chan []byte{},
		tracer:        otel.Tracer("github.com/yesC48/CyberIO/internal/sim/world"),
	}
	w.env = &simEnv{w: w}
	return w, nil
}

func (w *World) SetLogger(l *log.Logger) {
	if l != nil {
		w.logger = l
	}
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }
func (w *World) SetCollector(c *observability.Collector)       { w.collector = c }
func (w *World) SetRunID(id string)                            { w.runID = id }

func (w *World) Commands() chan<- CommandRequest          { return w.commands }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

func (w *World) ID() string          { return w.cfg.ID }
func (w *World) Width() int          { return w.cfg.Width }
func (w *World) Height() int         { return w.cfg.Height }
func (w *World) TickRateHz() int     { return w.cfg.TickRateHz }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Building returns the building at p. Loop goroutine only.
func (w *World) Building(p model.Pos) *Building { return w.buildings[p] }

// Graph exposes the network graph. Loop goroutine only.
func (w *World) Graph() *datanet.Graph { return w.graph }

func (w *World) WorldChanges() uint64 { return w.worldChanges }

func (w *World) inBounds(p model.Pos) bool {
	x, y := p.X(), p.Y()
	return x >= 0 && y >= 0 && x < w.cfg.Width && y < w.cfg.Height
}

func (w *World) cell(p model.Pos) int { return p.Y()*w.cfg.Width + p.X() }

// positions returns occupied tiles in ascending order, cached per world change.
func (w *World) positions() []model.Pos {
	if w.orderValid && w.orderAt == w.worldChanges {
		return w.order
	}
	w.order = w.order[:0]
	for p := range w.buildings {
		w.order = append(w.order, p)
	}
	sort.Slice(w.order, func(i, j int) bool { return w.order[i] < w.order[j] })
	w.orderAt = w.worldChanges
	w.orderValid = true
	return w.order
}

// proximity lists the occupied neighbor tiles in side order.
func (w *World) proximity(p model.Pos) []model.Pos {
	out := make([]model.Pos, 0, 4)
	for _, s := range datanet.Sides() {
		dx, dy := s.Offset()
		q := p.Add(dx, dy)
		if !w.inBounds(q) {
			continue
		}
		if _, ok := w.buildings[q]; ok {
			out = append(out, q)
		}
	}
	return out
}

// place puts a building on an empty tile and refreshes its neighborhood.
func (w *World) place(def catalogs.BlockDef, p model.Pos) *Building {
	b := w.newBuilding(def, p)
	w.buildings[p] = b
	w.grid[w.cell(p)] = w.catalogs.Blocks.Index[def.ID]
	if b.Node != nil {
		w.graph.Add(b.Node)
	}
	w.worldChanges++
	w.proximityChanged(p)
	return b
}

// remove tears a building out: links first, then connections, then the tile.
func (w *World) remove(p model.Pos) *Building {
	b := w.buildings[p]
	if b == nil {
		return nil
	}
	if b.Node != nil {
		w.graph.Remove(p)
	}
	if b.Sender != nil {
		b.Sender.ClearReceivers(w.env)
	}
	if b.Distributor != nil {
		for _, sp := range b.Distributor.Senders() {
			if sb := w.buildings[sp]; sb != nil && sb.Sender != nil {
				sb.Sender.Disconnect(w.env, p)
			}
		}
	}
	delete(w.buildings, p)
	w.grid[w.cell(p)] = 0
	w.worldChanges++
	w.proximityChanged(p)
	return b
}

// proximityChanged re-scans the tile and its four neighbors.
func (w *World) proximityChanged(p model.Pos) {
	tiles := append([]model.Pos{p}, w.proximity(p)...)
	for _, q := range tiles {
		b := w.buildings[q]
		if b == nil {
			continue
		}
		if b.Sender != nil {
			b.Sender.UpdateNearby(w.env)
		}
		if b.Distributor != nil {
			b.Distributor.UpdateRequirements(w.env)
		}
	}
}
