// Package metrics holds the Prometheus collectors of the API server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "social",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "social",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "social",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "social",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open websocket connections on this instance.",
		},
	)

	wsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "social",
			Subsystem: "realtime",
			Name:      "slow_consumers_dropped_total",
			Help:      "Connections closed because their send buffer was full.",
		},
	)

	chatMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "social",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages sent.",
		},
		[]string{"kind"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "social",
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Notifications stored.",
		},
		[]string{"type"},
	)

	pushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "social",
			Subsystem: "notifications",
			Name:      "push_failures_total",
			Help:      "FCM push sends that failed.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		wsConnections,
		wsDropped,
		chatMessages,
		notifications,
		pushFailures,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency labelled by the matched route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ConnectionOpened and ConnectionClosed track live websocket connections.
func ConnectionOpened() { wsConnections.Inc() }

func ConnectionClosed() { wsConnections.Dec() }

// SlowConsumerDropped counts a connection closed for not keeping up.
func SlowConsumerDropped() { wsDropped.Inc() }

// RecordChatMessage counts a sent message, kind is "direct" or "room".
func RecordChatMessage(kind string) {
	chatMessages.WithLabelValues(kind).Inc()
}

// RecordNotification counts a stored notification by type.
func RecordNotification(notifType string) {
	notifications.WithLabelValues(notifType).Inc()
}

// RecordPushFailure counts a failed push send.
func RecordPushFailure() { pushFailures.Inc() }
