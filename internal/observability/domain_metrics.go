package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_questions_total",
			Help: "Total number of inbound questions accepted by the dispatcher.",
		},
	)
	repliesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_replies_total",
			Help: "Total number of replies delivered back to senders.",
		},
	)
	failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_failures_total",
			Help: "Total number of pipeline runs ending in a failure, by kind.",
		},
		[]string{"kind"},
	)
	generationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_generation_duration_seconds",
			Help:    "Language-model SQL generation latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)
	executionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_execution_duration_seconds",
			Help:    "Database statement execution latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	schemaRefreshTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_schema_refresh_total",
			Help: "Total number of schema snapshot fetches against the database.",
		},
	)
	backupRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_backup_runs_total",
			Help: "Total number of backup runs, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		repliesTotal,
		failuresTotal,
		generationSeconds,
		executionSeconds,
		schemaRefreshTotal,
		backupRunsTotal,
	)
}

func ObserveQuestion() {
	questionsTotal.Inc()
}

func ObserveReply() {
	repliesTotal.Inc()
}

func ObserveFailure(kind string) {
	failuresTotal.WithLabelValues(kind).Inc()
}

func ObserveGeneration(elapsed time.Duration) {
	generationSeconds.Observe(elapsed.Seconds())
}

func ObserveExecution(elapsed time.Duration) {
	executionSeconds.Observe(elapsed.Seconds())
}

func ObserveSchemaRefresh() {
	schemaRefreshTotal.Inc()
}

func ObserveBackupRun(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	backupRunsTotal.WithLabelValues(outcome).Inc()
}
