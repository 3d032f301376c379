package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transfer kinds used as the "kind" label of datanet_transfers_total.
const (
	KindUnloaded    = "unloaded"
	KindSent        = "sent"
	KindDistributed = "distributed"
	KindCrafted     = "crafted"
	KindHop         = "hop"
	KindDelivered   = "delivered"
	KindMissed      = "missed"
	KindDropped     = "dropped"
)

// Collector exposes world loop metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	StepDuration prometheus.Histogram
	Transfers    *prometheus.CounterVec
	Commands     *prometheus.CounterVec
	ReflowVisits prometheus.Counter
	Heals        prometheus.Counter
	Networks     prometheus.Gauge
	Nodes        prometheus.Gauge
	Tick         prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	step, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "datanet_step_duration_seconds",
		Help:    "Wall time of one world tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "datanet_step_duration_seconds")
	if err != nil {
		return nil, err
	}
	transfers, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datanet_transfers_total",
		Help: "Item movements by kind.",
	}, []string{"kind"}), "datanet_transfers_total")
	if err != nil {
		return nil, err
	}
	commands, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datanet_commands_total",
		Help: "Applied commands by op and result code.",
	}, []string{"op", "code"}), "datanet_commands_total")
	if err != nil {
		return nil, err
	}
	reflow, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "datanet_reflow_visits_total",
		Help: "Nodes visited by split and merge traversals.",
	}), "datanet_reflow_visits_total")
	if err != nil {
		return nil, err
	}
	heals, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "datanet_heals_total",
		Help: "Dangling or asymmetric link slots cleared during traversal.",
	}), "datanet_heals_total")
	if err != nil {
		return nil, err
	}
	networks, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datanet_networks",
		Help: "Live network handles.",
	}), "datanet_networks")
	if err != nil {
		return nil, err
	}
	nodes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datanet_nodes",
		Help: "Network participant buildings.",
	}), "datanet_nodes")
	if err != nil {
		return nil, err
	}
	tick, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "datanet_tick",
		Help: "Last completed world tick.",
	}), "datanet_tick")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:     gatherer,
		StepDuration: step,
		Transfers:    transfers,
		Commands:     commands,
		ReflowVisits: reflow,
		Heals:        heals,
		Networks:     networks,
		Nodes:        nodes,
		Tick:         tick,
	}, nil
}

func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveStep(d time.Duration) {
	if c == nil || c.StepDuration == nil {
		return
	}
	c.StepDuration.Observe(d.Seconds())
}

func (c *Collector) AddTransfers(kind string, n int) {
	if c == nil || c.Transfers == nil || n <= 0 {
		return
	}
	c.Transfers.WithLabelValues(kind).Add(float64(n))
}

func (c *Collector) IncCommand(op, code string) {
	if c == nil || c.Commands == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	c.Commands.WithLabelValues(op, code).Inc()
}

// AddGraphDelta records traversal work and heals since the previous call.
func (c *Collector) AddGraphDelta(reflowVisits, heals uint64) {
	if c == nil {
		return
	}
	if c.ReflowVisits != nil && reflowVisits > 0 {
		c.ReflowVisits.Add(float64(reflowVisits))
	}
	if c.Heals != nil && heals > 0 {
		c.Heals.Add(float64(heals))
	}
}

func (c *Collector) SetTopology(networks, nodes int) {
	if c == nil {
		return
	}
	if c.Networks != nil {
		c.Networks.Set(float64(networks))
	}
	if c.Nodes != nil {
		c.Nodes.Set(float64(nodes))
	}
}

func (c *Collector) SetTick(tick uint64) {
	if c == nil || c.Tick == nil {
		return
	}
	c.Tick.Set(float64(tick))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
