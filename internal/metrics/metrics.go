package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cseleave", Name: "http_requests_total", Help: "Handled HTTP requests",
	}, []string{"method", "route", "code"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cseleave", Name: "http_request_seconds", Help: "HTTP handler latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cseleave", Name: "handler_errors_total", Help: "Unexpected handler errors (5xx)",
	})
	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cseleave", Name: "transitions_total", Help: "Workflow state transitions",
	}, []string{"entity", "to"})
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cseleave", Name: "notifications_total", Help: "Notification attempts by channel and result",
	}, []string{"channel", "result"})
	DocumentGeneration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cseleave", Name: "document_generation_seconds", Help: "Approval letter rendering latency",
		Buckets: prometheus.DefBuckets,
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cseleave", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
	JobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cseleave", Name: "job_runs_total", Help: "Total background job runs",
	}, []string{"job"})
	JobErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cseleave", Name: "job_errors_total", Help: "Total background job errors",
	}, []string{"job"})
	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cseleave", Name: "job_duration_seconds", Help: "Background job duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequests, HTTPDuration, HandlerErrors,
		Transitions, Notifications, DocumentGeneration, DBPing,
		JobRuns, JobErrors, JobDuration,
	)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveDocument(d time.Duration) { DocumentGeneration.Observe(d.Seconds()) }

// Transition считает переход сущности в новое состояние.
func Transition(entity, to string) { Transitions.WithLabelValues(entity, to).Inc() }

func Notification(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Notifications.WithLabelValues(channel, result).Inc()
}
