package annoy

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    addCounter      prometheus.Counter
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordSearch(k, candidates int, duration time.Duration, err error) {
//	    p.searchHistogram.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordAdd is called after each AddItem or Add.
	RecordAdd(duration time.Duration, err error)

	// RecordBuild is called after each build. trees is the number of trees
	// in the forest afterwards.
	RecordBuild(trees int, duration time.Duration, err error)

	// RecordSearch is called after each query. candidates is the number of
	// distinct items that were ranked.
	RecordSearch(k, candidates int, duration time.Duration, err error)

	// RecordSave is called after each save, export or blob upload.
	RecordSave(bytes int64, duration time.Duration, err error)

	// RecordLoad is called after each load.
	RecordLoad(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration, error)                {}
func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)         {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordSave(int64, time.Duration, error)        {}
func (NoopMetricsCollector) RecordLoad(int64, time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount         atomic.Int64
	AddErrors        atomic.Int64
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildTotalNanos  atomic.Int64
	TreesBuilt       atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	SearchCandidates atomic.Int64
	SaveCount        atomic.Int64
	SaveErrors       atomic.Int64
	SaveBytes        atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	LoadBytes        atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(_ time.Duration, err error) {
	b.AddCount.Add(1)
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(trees int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	b.TreesBuilt.Store(int64(trees))
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_, candidates int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.SearchCandidates.Add(int64(candidates))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(bytes int64, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	if err != nil {
		b.SaveErrors.Add(1)
		return
	}
	b.SaveBytes.Add(bytes)
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(bytes int64, _ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:            b.AddCount.Load(),
		AddErrors:           b.AddErrors.Load(),
		BuildCount:          b.BuildCount.Load(),
		BuildErrors:         b.BuildErrors.Load(),
		BuildAvgNanos:       avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		TreesBuilt:          b.TreesBuilt.Load(),
		SearchCount:         b.SearchCount.Load(),
		SearchErrors:        b.SearchErrors.Load(),
		SearchAvgNanos:      avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		SearchAvgCandidates: avg(b.SearchCandidates.Load(), b.SearchCount.Load()),
		SaveCount:           b.SaveCount.Load(),
		SaveErrors:          b.SaveErrors.Load(),
		SaveBytes:           b.SaveBytes.Load(),
		LoadCount:           b.LoadCount.Load(),
		LoadErrors:          b.LoadErrors.Load(),
		LoadBytes:           b.LoadBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount            int64
	AddErrors           int64
	BuildCount          int64
	BuildErrors         int64
	BuildAvgNanos       int64
	TreesBuilt          int64
	SearchCount         int64
	SearchErrors        int64
	SearchAvgNanos      int64
	SearchAvgCandidates int64
	SaveCount           int64
	SaveErrors          int64
	SaveBytes           int64
	LoadCount           int64
	LoadErrors          int64
	LoadBytes           int64
}
