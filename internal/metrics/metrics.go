package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout outcomes.
const (
	OutcomePlaced        = "placed"
	OutcomePaymentFailed = "payment_failed"
	OutcomeRejected      = "rejected"
	OutcomeError         = "error"
)

type Collectors struct {
	Requests  *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	Checkouts *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the storefront collectors on reg. Pass prometheus.NewRegistry()
// in tests to keep them isolated.
func New(reg *prometheus.Registry) *Collectors {
	c := &Collectors{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(c.Requests, c.Latency, c.Checkouts)
	return c
}

func (c *Collectors) ObserveCheckout(outcome string) {
	c.Checkouts.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by chi route pattern, so
// /api/orders/1 and /api/orders/2 share one series.
func (c *Collectors) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		c.Latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
