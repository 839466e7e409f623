// Package metrics exposes prometheus instrumentation for the client.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	kmsRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtc_kms_requests_total",
			Help: "Number of KMS messages posted, by method",
		},
		[]string{"method"},
	)
	kmsResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtc_kms_responses_total",
			Help: "Number of KMS responses handled, by kind",
		},
		[]string{"kind"},
	)
	locusUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtc_locus_updates_total",
			Help: "Number of call state snapshots processed, by outcome",
		},
		[]string{"outcome"},
	)
	locusResyncs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rtc_locus_resyncs_total",
			Help: "Number of full call state resyncs triggered by sequence gaps",
		},
	)
	activeCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtc_active_calls",
			Help: "Number of calls held by the phone",
		},
	)
	pushReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtc_push_reconnects_total",
			Help: "Number of push connection reconnect attempts, by source",
		},
		[]string{"source"},
	)
	pushEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtc_push_events_total",
			Help: "Number of push events received, by type",
		},
		[]string{"type"},
	)
)

func init() {
	registry.MustRegister(
		kmsRequests,
		kmsResponses,
		locusUpdates,
		locusResyncs,
		activeCalls,
		pushReconnects,
		pushEvents,
	)
}

// Registry returns the registry holding the client collectors.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the client collectors in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// KMSRequest counts a posted KMS message.
func KMSRequest(method string) {
	kmsRequests.WithLabelValues(method).Inc()
}

// KMSResponse counts a handled KMS response.
func KMSResponse(kind string) {
	kmsResponses.WithLabelValues(kind).Inc()
}

// LocusUpdate counts a processed call state snapshot.
func LocusUpdate(outcome string) {
	locusUpdates.WithLabelValues(outcome).Inc()
}

// LocusResync counts a resync triggered by a sequence gap.
func LocusResync() {
	locusResyncs.Inc()
}

// ActiveCalls sets the number of calls currently held.
func ActiveCalls(n int) {
	activeCalls.Set(float64(n))
}

// PushReconnect counts a reconnect attempt for a push source.
func PushReconnect(source string) {
	pushReconnects.WithLabelValues(source).Inc()
}

// PushEvent counts a received push event.
func PushEvent(eventType string) {
	pushEvents.WithLabelValues(eventType).Inc()
}
