// Package telemetry declares the Prometheus collectors exported on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_jobs_submitted_total",
		Help: "Jobs accepted by the engine",
	}, []string{"platform", "kind"})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_jobs_finished_total",
		Help: "Jobs that reached a terminal status",
	}, []string{"platform", "status"})

	JobRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_job_retries_total",
		Help: "Failed attempts that were put back on the queue",
	}, []string{"platform"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvester_job_attempt_duration_seconds",
		Help:    "Wall time of a single capability execution",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"platform"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_queue_depth",
		Help: "Jobs waiting in the priority queue",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_active_workers",
		Help: "Workers currently executing a job",
	})

	HealthyProxies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_proxies_healthy",
		Help: "Proxies passing health checks",
	})

	RateLimitMarks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_rate_limit_marks_total",
		Help: "Times a destination was put into cool-down",
	})

	IngestTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_ingest_tasks_total",
		Help: "Queue tasks handled by the ingest mux",
	}, []string{"type", "outcome"})
)
