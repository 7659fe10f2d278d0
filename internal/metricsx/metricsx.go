// Package metricsx exports the engine metrics to prometheus.
package metricsx

import (
	"github.com/ooni/geoquery/internal/engine"
	"github.com/ooni/geoquery/internal/resultcache"
	"github.com/prometheus/client_golang/prometheus"
)

// Source is the source of the metrics. [*engine.Engine] implements it.
type Source interface {
	Metrics() *engine.AggregatedMetrics
	CacheStats() resultcache.Stats
}

var _ Source = &engine.Engine{}

// Collector is a [prometheus.Collector] taking a snapshot of the
// engine metrics every time prometheus scrapes us.
//
// The zero value is invalid; construct using [NewCollector].
type Collector struct {
	source Source

	groupExecutions   *prometheus.Desc
	groupFailures     *prometheus.Desc
	groupResponseTime *prometheus.Desc
	groupResponses    *prometheus.Desc

	sourceExecutions  *prometheus.Desc
	sourceFailures    *prometheus.Desc
	sourceSuccessRate *prometheus.Desc
	sourceAvgResponse *prometheus.Desc

	cacheSize        *prometheus.Desc
	cacheHits        *prometheus.Desc
	cacheMisses      *prometheus.Desc
	cacheEvictions   *prometheus.Desc
	cacheExpirations *prometheus.Desc
}

var _ prometheus.Collector = &Collector{}

// NewCollector creates a new [*Collector] using the given namespace
// as the prefix of all the metric names.
func NewCollector(namespace string, source Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		source: source,

		groupExecutions:   desc("backend_executions_total", "Number of backend queries by group", "group"),
		groupFailures:     desc("backend_failures_total", "Number of failed backend queries by group", "group"),
		groupResponseTime: desc("backend_response_seconds_total", "Total remote backends response time", "group"),
		groupResponses:    desc("backend_responses_total", "Number of timed remote backends responses", "group"),

		sourceExecutions:  desc("source_executions_total", "Number of queries by remote backend", "source"),
		sourceFailures:    desc("source_failures_total", "Number of failed queries by remote backend", "source"),
		sourceSuccessRate: desc("source_success_rate", "Success rate by remote backend", "source"),
		sourceAvgResponse: desc("source_average_response_seconds", "Average response time by remote backend", "source"),

		cacheSize:        desc("cache_size", "Number of cached results"),
		cacheHits:        desc("cache_hits_total", "Number of cache hits"),
		cacheMisses:      desc("cache_misses_total", "Number of cache misses"),
		cacheEvictions:   desc("cache_evictions_total", "Number of entries evicted because the cache was full"),
		cacheExpirations: desc("cache_expirations_total", "Number of expired entries"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.groupExecutions
	ch <- c.groupFailures
	ch <- c.groupResponseTime
	ch <- c.groupResponses
	ch <- c.sourceExecutions
	ch <- c.sourceFailures
	ch <- c.sourceSuccessRate
	ch <- c.sourceAvgResponse
	ch <- c.cacheSize
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.cacheEvictions
	ch <- c.cacheExpirations
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	am := c.source.Metrics()

	groups := []struct {
		name    string
		metrics *engine.GroupMetrics
	}{
		{"local", &am.Local},
		{"remote", &am.Remote},
	}
	for _, g := range groups {
		ch <- prometheus.MustNewConstMetric(c.groupExecutions, prometheus.CounterValue, float64(g.metrics.ExecutionCount), g.name)
		ch <- prometheus.MustNewConstMetric(c.groupFailures, prometheus.CounterValue, float64(g.metrics.FailureCount), g.name)
	}
	ch <- prometheus.MustNewConstMetric(c.groupResponseTime, prometheus.CounterValue, am.Remote.TotalResponseTime.Seconds(), "remote")
	ch <- prometheus.MustNewConstMetric(c.groupResponses, prometheus.CounterValue, float64(am.Remote.ResponseCount), "remote")

	for _, sm := range am.Remote.Sources {
		var average float64
		if sm.ResponseCount > 0 {
			average = sm.TotalResponseTime.Seconds() / float64(sm.ResponseCount)
		}
		ch <- prometheus.MustNewConstMetric(c.sourceExecutions, prometheus.CounterValue, float64(sm.ExecutionCount), sm.Name)
		ch <- prometheus.MustNewConstMetric(c.sourceFailures, prometheus.CounterValue, float64(sm.FailureCount), sm.Name)
		ch <- prometheus.MustNewConstMetric(c.sourceSuccessRate, prometheus.GaugeValue, sm.SuccessRate, sm.Name)
		ch <- prometheus.MustNewConstMetric(c.sourceAvgResponse, prometheus.GaugeValue, average, sm.Name)
	}

	stats := c.source.CacheStats()
	ch <- prometheus.MustNewConstMetric(c.cacheSize, prometheus.GaugeValue, float64(am.CacheSize))
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.cacheEvictions, prometheus.CounterValue, float64(stats.Evictions))
	ch <- prometheus.MustNewConstMetric(c.cacheExpirations, prometheus.CounterValue, float64(stats.Expirations))
}
