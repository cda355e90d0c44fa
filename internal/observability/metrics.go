package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_http_requests_total",
			Help: "Total number of HTTP requests processed by the support service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	messagesPostedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_messages_posted_total",
			Help: "Total number of messages stored, by scope.",
		},
		[]string{"scope"},
	)
	reactionTogglesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_reaction_toggles_total",
			Help: "Total number of reaction toggles, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	ticketTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_ticket_transitions_total",
			Help: "Total number of ticket lifecycle transitions.",
		},
		[]string{"transition"},
	)
	onlineEstimate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_online_estimate",
			Help: "Most recent online-count estimate from the presence tracker.",
		},
	)
	pollTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_poll_ticks_total",
			Help: "Total number of synchronization poll ticks, by surface.",
		},
		[]string{"surface"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		messagesPostedTotal,
		reactionTogglesTotal,
		ticketTransitionsTotal,
		onlineEstimate,
		pollTicksTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncMessagePosted(scope string) {
	messagesPostedTotal.WithLabelValues(scope).Inc()
}

func IncReactionToggle(kind string, applied bool) {
	outcome := "removed"
	if applied {
		outcome = "applied"
	}
	reactionTogglesTotal.WithLabelValues(kind, outcome).Inc()
}

func IncTicketTransition(transition string) {
	ticketTransitionsTotal.WithLabelValues(transition).Inc()
}

func SetOnlineEstimate(count int) {
	onlineEstimate.Set(float64(count))
}

func IncPollTick(surface string) {
	pollTicksTotal.WithLabelValues(surface).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
