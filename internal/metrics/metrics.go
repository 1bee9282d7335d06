package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors exported on /metrics.
type Metrics struct {
	Requests           *prometheus.CounterVec
	Latency            *prometheus.HistogramVec
	MarkingSubmissions *prometheus.CounterVec
	RecordsUpserted    prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursetrack",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coursetrack",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		MarkingSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursetrack",
			Name:      "marking_submissions_total",
			Help:      "Attendance sheet submissions by outcome.",
		}, []string{"outcome"}),
		RecordsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coursetrack",
			Name:      "attendance_records_upserted_total",
			Help:      "Attendance records written by sheet submissions.",
		}),
	}
	reg.MustRegister(m.Requests, m.Latency, m.MarkingSubmissions, m.RecordsUpserted)
	return m
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.Latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveMarking counts one sheet submission and the records it wrote.
func (m *Metrics) ObserveMarking(written int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.MarkingSubmissions.WithLabelValues("rejected").Inc()
		return
	}
	m.MarkingSubmissions.WithLabelValues("accepted").Inc()
	m.RecordsUpserted.Add(float64(written))
}
