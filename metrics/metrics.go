// Package metrics exposes engine counters through expvar.
package metrics

import (
	"expvar"
	"net/http"
	"sync"
	"time"
)

// Start will start a server at the given address exposing the metric
// variables.
func Start(addr string) error {
	return http.ListenAndServe(addr, nil)
}

var (
	updatesProcessedMu     sync.Mutex
	updatesProcessed       = expvar.NewInt("updates_processed")
	updatesProcessingAvgMs = expvar.NewFloat("updates_processing_avgtime_ms")

	updatesFailed  = expvar.NewInt("updates_failed")
	commitsIndexed = expvar.NewInt("commits_indexed")
	queriesServed  = expvar.NewInt("queries_served")

	producedJobs       = expvar.NewInt("jobs_produced")
	producedJobsFailed = expvar.NewInt("jobs_produced_failed")
)

// UpdateProcessed increments the counter of processed updates and folds the
// elapsed time into the average update duration.
func UpdateProcessed(elapsed time.Duration) {
	updatesProcessedMu.Lock()
	defer updatesProcessedMu.Unlock()
	updatesProcessed.Add(1)
	processed := float64(updatesProcessed.Value())
	// (t[n] + t[0..n-1] * (n - 1)) / n
	t := (float64(elapsed.Milliseconds()) + updatesProcessingAvgMs.Value()*(processed-1)) / processed
	updatesProcessingAvgMs.Set(t)
}

// UpdateFailed increments the counter of failed updates.
func UpdateFailed() {
	updatesFailed.Add(1)
}

// CommitsIndexed adds to the counter of commits added to ancestry indexes.
func CommitsIndexed(n int) {
	commitsIndexed.Add(int64(n))
}

// QueryServed increments the counter of distribution queries served.
func QueryServed() {
	queriesServed.Add(1)
}

// JobProduced increments the counter of produced sync jobs.
func JobProduced() {
	producedJobs.Add(1)
}

// JobProduceFailed increments the counter of failures producing sync jobs.
func JobProduceFailed() {
	producedJobsFailed.Add(1)
}
