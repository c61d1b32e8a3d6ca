package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AssignmentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_transitions_total",
			Help: "Assignment status transitions",
		},
		[]string{"to"},
	)

	AnswersSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assignment_answers_submitted_total",
			Help: "Answers upserted into assignments",
		},
	)

	AnalysisRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psychometric_analysis_requests_total",
			Help: "Outbound psychometric analysis calls by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "psychometric_analysis_duration_seconds",
			Help:    "Duration of outbound psychometric analysis calls",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	NotificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_notifications_total",
			Help: "Assignment notifications by outcome",
		},
		[]string{"outcome"},
	)

	ExpiredAssignments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assignments_expired_total",
			Help: "Assignments moved to expired by the sweeper",
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AssignmentTransitions,
			AnswersSubmitted,
			AnalysisRequests,
			AnalysisDuration,
			NotificationsDispatched,
			ExpiredAssignments,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
