package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
)

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	c.AddTransfers(KindSent, 3)
	c.AddTransfers(KindSent, 0)
	c.IncCommand("LINK", "")
	c.IncCommand("LINK", "E_SIDES_FULL")
	c.AddGraphDelta(7, 1)
	c.SetTopology(2, 5)
	c.ObserveStep(2 * time.Millisecond)

	if got := testutil.ToFloat64(c.Transfers.WithLabelValues(KindSent)); got != 3 {
		t.Fatalf("sent = %v", got)
	}
	if got := testutil.ToFloat64(c.Commands.WithLabelValues("LINK", "OK")); got != 1 {
		t.Fatalf("LINK OK = %v", got)
	}
	if got := testutil.ToFloat64(c.ReflowVisits); got != 7 {
		t.Fatalf("reflow visits = %v", got)
	}
	if got := testutil.ToFloat64(c.Networks); got != 2 {
		t.Fatalf("networks = %v", got)
	}
}

func TestCollector_ReRegisterReusesExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	a.AddTransfers(KindHop, 1)
	b.AddTransfers(KindHop, 1)
	if got := testutil.ToFloat64(a.Transfers.WithLabelValues(KindHop)); got != 2 {
		t.Fatalf("shared counter = %v", got)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.AddTransfers(KindSent, 1)
	c.IncCommand("PLACE", "")
	c.AddGraphDelta(1, 1)
	c.SetTopology(1, 1)
	c.SetTick(1)
	c.ObserveStep(time.Millisecond)
	if c.Gatherer() != nil {
		t.Fatalf("nil collector gatherer")
	}
}

func TestHandler_Exposes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	c.SetTick(42)
	c.AddTransfers(KindDelivered, 1)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"datanet_tick 42", "datanet_transfers_total", "datanet_networks"} {
		if !strings.Contains(body, name) {
			t.Fatalf("missing %q in %s", name, body)
		}
	}
}

func TestInitTracing_StdoutExports(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:  true,
		Exporter: "stdout",
		Writer:   &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "world.step")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "world.step") {
		t.Fatalf("span not exported: %q", buf.String())
	}
}

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected unsupported exporter error")
	}
}
