package view

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports view counters as Prometheus metrics.
// Collect reads the view without locking; gather from the goroutine that
// owns the view.
type Collector struct {
	view *LazyView

	queries     *prometheus.Desc
	batchLoads  *prometheus.Desc
	cacheHits   *prometheus.Desc
	cacheMisses *prometheus.Desc
	evictions   *prometheus.Desc
	cacheSize   *prometheus.Desc
	maxCache    *prometheus.Desc
	listeners   *prometheus.Desc
	pending     *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(v *LazyView, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc("lazyquery_view_"+name, help, labels, constLabels)
	}
	return &Collector{
		view:        v,
		queries:     desc("queries_total", "Queries constructed by the view"),
		batchLoads:  desc("batch_loads_total", "Batches loaded from queries"),
		cacheHits:   desc("cache_hits_total", "Item reads served from the cache"),
		cacheMisses: desc("cache_misses_total", "Item reads that triggered a batch load"),
		evictions:   desc("cache_evictions_total", "Items evicted from the cache"),
		cacheSize:   desc("cache_items", "Items currently cached"),
		maxCache:    desc("cache_max_items", "Soft bound on cached items"),
		listeners:   desc("listeners", "Properties the view listens to"),
		pending:     desc("pending_items", "Buffered edits by kind", "kind"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queries
	ch <- c.batchLoads
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.evictions
	ch <- c.cacheSize
	ch <- c.maxCache
	ch <- c.listeners
	ch <- c.pending
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.view.Stats()

	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(st.QueryCount))
	ch <- prometheus.MustNewConstMetric(c.batchLoads, prometheus.CounterValue, float64(st.BatchLoads))
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(st.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(st.CacheMisses))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.Evictions))
	ch <- prometheus.MustNewConstMetric(c.cacheSize, prometheus.GaugeValue, float64(st.CacheSize))
	ch <- prometheus.MustNewConstMetric(c.maxCache, prometheus.GaugeValue, float64(c.view.MaxCacheSize()))
	ch <- prometheus.MustNewConstMetric(c.listeners, prometheus.GaugeValue, float64(st.Listeners))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(st.Added), "added")
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(st.Modified), "modified")
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(st.Removed), "removed")
}
