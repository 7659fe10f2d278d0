package lookupd

//
// Metrics definitions
//

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsSummaryObjectives returns the summary objectives for promauto.NewSummary.
func metricsSummaryObjectives() map[float64]float64 {
	return map[float64]float64{
		0.25: 0.010,
		0.5:  0.010,
		0.75: 0.010,
		0.9:  0.010,
		0.99: 0.001,
	}
}

var (
	// metricRequestsCount counts the number of requests we served.
	metricRequestsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoquery_lookupd_requests_count",
		Help: "Total number of processed requests",
	}, []string{"code", "reason"})

	// metricRequestsInflight gauges the number of requests currently inflight.
	metricRequestsInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geoquery_lookupd_requests_inflight_gauge",
		Help: "The number or requests currently inflight",
	})

	// metricLookupDurationSeconds summarizes the duration of engine lookups.
	metricLookupDurationSeconds = promauto.NewSummary(prometheus.SummaryOpts{
		Name:       "geoquery_lookupd_lookup_duration_seconds",
		Help:       "Summarizes the time to complete an engine lookup (in seconds)",
		Objectives: metricsSummaryObjectives(),
	})
)
