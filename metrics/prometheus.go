package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus exports cache events as prometheus counters, labeled by the
// memoized function they belong to.
type Prometheus struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	expired   prometheus.Counter
	touches   prometheus.Counter
}

// NewPrometheus registers the cache counters with reg. function is the
// value of the "function" label, usually the memoized function's name.
func NewPrometheus(reg prometheus.Registerer, function string) *Prometheus {
	labels := prometheus.Labels{"function": function}
	factory := promauto.With(reg)
	return &Prometheus{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name:        "s3_memoize_hits_total",
			Help:        "Calls served from the cache.",
			ConstLabels: labels,
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name:        "s3_memoize_misses_total",
			Help:        "Calls that invoked the wrapped function.",
			ConstLabels: labels,
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Name:        "s3_memoize_evictions_total",
			Help:        "Entries removed to stay within maxsize.",
			ConstLabels: labels,
		}),
		expired: factory.NewCounter(prometheus.CounterOpts{
			Name:        "s3_memoize_expired_total",
			Help:        "Entries dropped past their expiration.",
			ConstLabels: labels,
		}),
		touches: factory.NewCounter(prometheus.CounterOpts{
			Name:        "s3_memoize_touches_total",
			Help:        "Access-time updates queued for LRU entries.",
			ConstLabels: labels,
		}),
	}
}

func (p *Prometheus) Hit()      { p.hits.Inc() }
func (p *Prometheus) Miss()     { p.misses.Inc() }
func (p *Prometheus) Eviction() { p.evictions.Inc() }
func (p *Prometheus) Expire()   { p.expired.Inc() }
func (p *Prometheus) Touch()    { p.touches.Inc() }
