package metrics_test

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/susumuota/s3-memoize/metrics"
)

func TestCounters(t *testing.T) {
	var c metrics.Counters

	c.Hit()
	c.Hit()
	c.Miss()
	c.Eviction()
	c.Expire()
	c.Touch()

	assert.Equal(t, int64(2), c.Hits())
	assert.Equal(t, int64(1), c.Misses())
	assert.Equal(t, int64(1), c.Evictions())
	assert.Equal(t, int64(1), c.Expired())
	assert.Equal(t, int64(1), c.Touches())

	c.Reset()
	assert.Equal(t, int64(0), c.Hits())
	assert.Equal(t, int64(0), c.Misses())
}

func TestCountersConcurrent(t *testing.T) {
	var c metrics.Counters
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Hit()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5000), c.Hits())
}

func TestMultiFansOut(t *testing.T) {
	var a, b metrics.Counters
	m := metrics.Multi{&a, &b}

	m.Hit()
	m.Miss()

	assert.Equal(t, int64(1), a.Hits())
	assert.Equal(t, int64(1), b.Hits())
	assert.Equal(t, int64(1), a.Misses())
	assert.Equal(t, int64(1), b.Misses())
}

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := metrics.NewPrometheus(reg, "pkg.Square")

	p.Hit()
	p.Hit()
	p.Miss()

	assert.Equal(t, float64(2), testutil.ToFloat64(metricByName(t, reg, "s3_memoize_hits_total", p)))
	assert.Equal(t, 5, countRegistered(t, reg))
}

// metricByName is a small indirection so the test reads naturally; the
// Prometheus implementation exposes no getters, so we count via the
// registry instead.
func metricByName(t *testing.T, reg *prometheus.Registry, name string, p *metrics.Prometheus) prometheus.Collector {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			// Re-expose through a constant collector for ToFloat64.
			g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "x"})
			g.Set(f.GetMetric()[0].GetCounter().GetValue())
			return g
		}
	}
	t.Fatalf("metric %s not registered", name)
	return nil
}

func countRegistered(t *testing.T, reg *prometheus.Registry) int {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	return len(families)
}
