// Package metrics holds the Prometheus collectors for the storefront API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders created, by payment method.",
		},
		[]string{"method"},
	)

	ordersPaid = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "paid_total",
			Help:      "Provider orders captured and marked completed.",
		},
	)

	ordersSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "swept_total",
			Help:      "Abandoned pending orders deleted by the sweeper.",
		},
	)

	paypalCalls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "paypal",
			Name:      "call_duration_seconds",
			Help:      "Duration of PayPal API calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 9),
		},
		[]string{"op", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ordersPlaced,
		ordersPaid,
		ordersSwept,
		paypalCalls,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RequestStarted increments the in-flight gauge and returns the matching
// decrement.
func RequestStarted() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// ObserveHTTP records one finished request.  route is the registered route
// pattern (e.g. /api/orders/:id) so ids do not explode label cardinality.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// OrderPlaced counts a newly created order.
func OrderPlaced(method string) { ordersPlaced.WithLabelValues(method).Inc() }

// OrderPaid counts a captured provider order.
func OrderPaid() { ordersPaid.Inc() }

// OrdersSwept adds n to the sweeper counter.
func OrdersSwept(n int64) {
	if n > 0 {
		ordersSwept.Add(float64(n))
	}
}

// PayPalCall records the outcome of one provider call.
func PayPalCall(op string, d time.Duration, err error) {
	paypalCalls.WithLabelValues(op, strconv.FormatBool(err == nil)).Observe(d.Seconds())
}
