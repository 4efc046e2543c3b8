package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the event store, relay and HTTP
// metrics of the camera service. It satisfies eventstore.Observer.
type Collector struct {
	registry *prometheus.Registry

	appends       *prometheus.CounterVec
	reads         *prometheus.CounterVec
	appendLatency *prometheus.HistogramVec
	readLatency   *prometheus.HistogramVec

	published *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{registry: reg}

	c.appends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_es_appends_total",
		Help: "Stream appends by outcome",
	}, []string{"outcome"})
	c.reads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_es_reads_total",
		Help: "Stream reads by outcome",
	}, []string{"outcome"})
	c.appendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vms_es_append_duration_seconds",
		Help:    "Latency of store appends",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	c.readLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vms_es_read_duration_seconds",
		Help:    "Latency of store reads",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	c.published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_es_relay_published_total",
		Help: "Events relayed to NATS by result",
	}, []string{"result"})

	c.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vms_es_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	c.httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vms_es_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	reg.MustRegister(
		c.appends, c.reads, c.appendLatency, c.readLatency,
		c.published, c.httpRequests, c.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) ObserveAppend(outcome string, d time.Duration) {
	c.appends.WithLabelValues(outcome).Inc()
	c.appendLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

func (c *Collector) ObserveRead(outcome string, d time.Duration) {
	c.reads.WithLabelValues(outcome).Inc()
	c.readLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

func (c *Collector) ObservePublish(result string) {
	c.published.WithLabelValues(result).Inc()
}

// ObserveHTTP records one finished request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
