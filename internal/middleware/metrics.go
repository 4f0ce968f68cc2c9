package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrms",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Portal requests broken down by route and status class.",
	}, []string{"route", "result"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hrms",
		Subsystem: "http",
		Name:      "latency_seconds",
		Help:      "Portal request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// Metrics records request counts per mux route template. Register it with
// router.Use so the matched route is available.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		httpRequests.WithLabelValues(route, strconv.Itoa(rec.Status()/100)+"xx").Inc()
		httpLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
