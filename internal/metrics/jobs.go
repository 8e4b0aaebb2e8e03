package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsStarted counts jobs created, by kind.
	JobsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrord_jobs_started_total",
			Help: "Total number of backup/upload jobs started",
		},
		[]string{"kind"},
	)

	// JobsCompleted counts jobs that reached the completed state, by kind.
	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrord_jobs_completed_total",
			Help: "Total number of jobs that completed",
		},
		[]string{"kind"},
	)

	// JobsFailed counts jobs that reached the failed state, by kind.
	JobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrord_jobs_failed_total",
			Help: "Total number of jobs that failed",
		},
		[]string{"kind"},
	)

	// RowsInserted counts rows inserted into mirror tables by backup jobs.
	RowsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrord_rows_inserted_total",
		Help: "Total rows inserted into mirror tables",
	})

	// RowsSkipped counts rows already present during backup.
	RowsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrord_rows_skipped_total",
		Help: "Total rows skipped during backup because they were already mirrored",
	})

	// RowsUploaded counts rows pushed to remote tables by upload jobs.
	RowsUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirrord_rows_uploaded_total",
		Help: "Total rows uploaded to remote tables",
	})
)
