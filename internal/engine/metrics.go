package engine

//
// Metrics snapshot
//

import (
	"fmt"
	"time"

	"github.com/ooni/geoquery/internal/model"
)

// SourceMetrics contains the metrics of a single remote backend.
type SourceMetrics struct {
	Name              string        `json:"name"`
	Weight            int           `json:"weight"`
	SuccessRate       float64       `json:"success_rate"`
	ExecutionCount    int64         `json:"execution_count"`
	FailureCount      int64         `json:"failure_count"`
	TotalResponseTime time.Duration `json:"total_response_time"`
	ResponseCount     int64         `json:"response_count"`
}

// GroupMetrics contains the metrics of a group of backends.
type GroupMetrics struct {
	ExecutionCount    int64         `json:"execution_count"`
	FailureCount      int64         `json:"failure_count"`
	TotalResponseTime time.Duration `json:"total_response_time"`
	ResponseCount     int64         `json:"response_count"`

	// Sources is only filled for remote backends.
	Sources []SourceMetrics `json:"sources,omitempty"`
}

// SuccessRate returns the group success rate or 1.0 when the
// group did not execute any query.
func (gm *GroupMetrics) SuccessRate() float64 {
	if gm.ExecutionCount <= 0 {
		return 1.0
	}
	return float64(gm.ExecutionCount-gm.FailureCount) / float64(gm.ExecutionCount)
}

// AverageResponseTime returns the average response time or zero.
func (gm *GroupMetrics) AverageResponseTime() time.Duration {
	if gm.ResponseCount <= 0 {
		return 0
	}
	return gm.TotalResponseTime / time.Duration(gm.ResponseCount)
}

func (gm *GroupMetrics) add(other *GroupMetrics) {
	gm.ExecutionCount += other.ExecutionCount
	gm.FailureCount += other.FailureCount
	gm.TotalResponseTime += other.TotalResponseTime
	gm.ResponseCount += other.ResponseCount
}

// AggregatedMetrics is a point-in-time snapshot of the engine metrics.
//
// Counters are read one at a time while queries may be running, hence
// fields may reflect slightly different instants.
type AggregatedMetrics struct {
	Local      GroupMetrics `json:"local"`
	Remote     GroupMetrics `json:"remote"`
	Combined   GroupMetrics `json:"combined"`
	CacheSize  int          `json:"cache_size"`
	CacheStats string       `json:"cache_stats"`
}

// String implements fmt.Stringer.
func (am *AggregatedMetrics) String() string {
	return fmt.Sprintf(
		"local: executions=%d failures=%d; remote: executions=%d failures=%d avg=%s; cache: size=%d %s",
		am.Local.ExecutionCount, am.Local.FailureCount,
		am.Remote.ExecutionCount, am.Remote.FailureCount, am.Remote.AverageResponseTime(),
		am.CacheSize, am.CacheStats,
	)
}

// Metrics returns a snapshot of the metrics of all the registered backends.
func (e *Engine) Metrics() *AggregatedMetrics {
	am := &AggregatedMetrics{}
	for _, source := range *e.sources.Load() {
		failures := source.FailureCount()
		executions := source.ExecutionCount()
		remote, ok := source.(model.RemoteBackend)
		if !ok || source.Kind() != model.BackendKindRemote {
			am.Local.ExecutionCount += executions
			am.Local.FailureCount += failures
			continue
		}
		sm := SourceMetrics{
			Name:              source.Name(),
			Weight:            source.Weight(),
			SuccessRate:       source.SuccessRate(),
			ExecutionCount:    executions,
			FailureCount:      failures,
			TotalResponseTime: remote.TotalResponseTime(),
			ResponseCount:     remote.ResponseCount(),
		}
		am.Remote.ExecutionCount += sm.ExecutionCount
		am.Remote.FailureCount += sm.FailureCount
		am.Remote.TotalResponseTime += sm.TotalResponseTime
		am.Remote.ResponseCount += sm.ResponseCount
		am.Remote.Sources = append(am.Remote.Sources, sm)
	}
	am.Combined.add(&am.Local)
	am.Combined.add(&am.Remote)
	am.CacheSize = e.cache.Len()
	am.CacheStats = e.cache.String()
	return am
}
