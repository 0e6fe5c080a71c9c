// Package metrics counts upstream calls and cache outcomes. Counters are
// exported through Prometheus and optionally mirrored to CloudWatch.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"

	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheStaleServe = "stale_serve"
)

var (
	once             sync.Once
	upstreamRequests *prometheus.CounterVec
	cacheEvents      *prometheus.CounterVec

	mirrorMu sync.Mutex
	mirror   map[mirrorKey]float64
)

type mirrorKey struct {
	name      string
	dimension string
}

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		upstreamRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whaleflow_upstream_requests_total",
				Help: "Number of upstream fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		)

		cacheEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whaleflow_cache_events_total",
				Help: "Cache hits, misses and stale serves by route",
			},
			[]string{"route", "event"},
		)

		_ = prometheus.Register(upstreamRequests)
		_ = prometheus.Register(cacheEvents)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		mirror = make(map[mirrorKey]float64)
	})
}

// Handler exposes the Prometheus registry; mounted on the API router.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncUpstream increments the fetch counter for a source.
func IncUpstream(source, outcome string) {
	if upstreamRequests == nil {
		return
	}
	upstreamRequests.WithLabelValues(source, outcome).Inc()
	mirrorAdd("UpstreamRequests", source+"_"+outcome)
}

// IncCache increments the cache event counter for a route.
func IncCache(route, event string) {
	if cacheEvents == nil {
		return
	}
	cacheEvents.WithLabelValues(route, event).Inc()
	mirrorAdd("CacheEvents", route+"_"+event)
}

func mirrorAdd(name, dimension string) {
	mirrorMu.Lock()
	if mirror != nil {
		mirror[mirrorKey{name: name, dimension: dimension}]++
	}
	mirrorMu.Unlock()
}

// drainMirror returns the accumulated counts since the last drain.
func drainMirror() map[mirrorKey]float64 {
	mirrorMu.Lock()
	defer mirrorMu.Unlock()
	if len(mirror) == 0 {
		return nil
	}
	out := mirror
	mirror = make(map[mirrorKey]float64)
	return out
}
