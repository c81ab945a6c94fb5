package metrics

import (
	"sync"

	"github.com/juju/errors"
	"github.com/ltick/tick-rediscluster/pooling"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	errCollectorHasRegistered = "metrics: collector '%s' has registered"
	errRegisterCollector      = "metrics: register collector '%s'"
)

// Lifecycle events counted by a Recorder.
const (
	EventCreate       = "create"
	EventCreateError  = "create_error"
	EventRecycle      = "recycle"
	EventRecycleError = "recycle_error"
)

// Registry registers collectors once by name on a prometheus Registerer.
type Registry struct {
	registerer prometheus.Registerer
	mutex      sync.Mutex
	collectors map[string]prometheus.Collector
}

func NewRegistry(registerer prometheus.Registerer) *Registry {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Registry{
		registerer: registerer,
		collectors: make(map[string]prometheus.Collector),
	}
}

func (r *Registry) Register(name string, c prometheus.Collector) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.collectors[name]; ok {
		return errors.Annotatef(errors.Errorf(errCollectorHasRegistered, name), errRegisterCollector, name)
	}
	if err := r.registerer.Register(c); err != nil {
		return errors.Annotatef(err, errRegisterCollector, name)
	}
	r.collectors[name] = c
	return nil
}

func (r *Registry) Get(name string) prometheus.Collector {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.collectors[name]
}

// StatusSource is anything reporting pool counters.
type StatusSource interface {
	Status() pooling.Status
}

// PoolCollector exports the counters of a pool as gauges, read at scrape
// time.
type PoolCollector struct {
	source       StatusSource
	maxSize      *prometheus.Desc
	size         *prometheus.Desc
	available    *prometheus.Desc
	acquired     *prometheus.Desc
	constructing *prometheus.Desc
}

func NewPoolCollector(namespace string, pool string, source StatusSource) *PoolCollector {
	labels := prometheus.Labels{"pool": pool}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, nil, labels)
	}
	return &PoolCollector{
		source:       source,
		maxSize:      desc("max_size", "Maximum number of connections the pool may hold."),
		size:         desc("size", "Number of connections currently held by the pool."),
		available:    desc("available", "Number of idle connections."),
		acquired:     desc("acquired", "Number of connections checked out."),
		constructing: desc("constructing", "Number of connections being created."),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.maxSize
	ch <- c.size
	ch <- c.available
	ch <- c.acquired
	ch <- c.constructing
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	status := c.source.Status()
	ch <- prometheus.MustNewConstMetric(c.maxSize, prometheus.GaugeValue, float64(status.MaxSize))
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(status.Size))
	ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, float64(status.Available))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(status.Acquired))
	ch <- prometheus.MustNewConstMetric(c.constructing, prometheus.GaugeValue, float64(status.Constructing))
}

// Recorder counts connection lifecycle events. A nil Recorder discards
// them.
type Recorder struct {
	events *prometheus.CounterVec
}

func NewRecorder(namespace string) *Recorder {
	return &Recorder{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "events_total",
			Help:      "Connection lifecycle events by outcome.",
		}, []string{"event"}),
	}
}

func (r *Recorder) Observe(event string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(event).Inc()
}

func (r *Recorder) Counter(event string) prometheus.Counter {
	return r.events.WithLabelValues(event)
}

func (r *Recorder) Describe(ch chan<- *prometheus.Desc) {
	r.events.Describe(ch)
}

func (r *Recorder) Collect(ch chan<- prometheus.Metric) {
	r.events.Collect(ch)
}
