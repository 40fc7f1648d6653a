// Package metrics defines prometheus metrics for completion requests.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mistral_chat_request_duration_seconds",
			Help:    "Time from submission to delivery in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45},
		},
		[]string{"model", "outcome"},
	)

	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mistral_chat_requests_total",
			Help: "Total number of completion requests delivered",
		},
		[]string{"model", "outcome"},
	)

	HTTPStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mistral_chat_http_status_total",
			Help: "HTTP status codes returned by the completion endpoint",
		},
		[]string{"code"},
	)

	ResponseBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mistral_chat_response_bytes",
			Help:    "Size of response bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 9),
		},
	)

	InflightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mistral_chat_inflight_requests",
			Help: "Current in-flight completion requests",
		},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
