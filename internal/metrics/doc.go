// Package metrics holds the shared result set of a page-load run.
//
// Every session worker appends completed trials to one [Collector]:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//
//	collector.Record(metrics.Trial{Worker: 1, Number: 1, Duration: d, End: time.Now()})
//
//	// after all workers are done
//	stats, err := collector.Stats(elapsed)
//	if errors.Is(err, metrics.ErrNoData) {
//		// nothing was measured
//	}
//
// The collector keeps two views of the same data: the sequence of trials in the
// order they completed (interleaved across workers) and, per worker, the ordered
// list of that worker's durations. Both only grow.
//
// # Statistics
//
// [Stats] reports mean (rounded to two decimals), min and max over the flattened
// set of durations, histogram percentiles (P50, P90, P95, P99), and a per-worker
// breakdown. Workers that failed are listed with their error and mark the stats
// as incomplete.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Record is atomic per trial.
package metrics
