package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// PagesTotal counts listing pages by outcome (fetched, skipped).
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handle_crawler",
			Name:      "pages_total",
			Help:      "Directory listing pages by outcome.",
		},
		[]string{"outcome"},
	)

	// MembersTotal counts member cards by outcome (processed, emitted, malformed, emit_failed).
	MembersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handle_crawler",
			Name:      "members_total",
			Help:      "Member cards by outcome.",
		},
		[]string{"outcome"},
	)

	// ProbesTotal counts preview probes by resulting kind, plus "error".
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handle_crawler",
			Name:      "probes_total",
			Help:      "Handle preview probes by classification.",
		},
		[]string{"kind"},
	)

	// ProbeCacheHits counts classifications answered from the per-run memo.
	ProbeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "handle_crawler",
			Name:      "probe_cache_hits_total",
			Help:      "Handle classifications served without a new probe.",
		},
	)

	// ProbeDuration observes preview probe latency.
	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "handle_crawler",
			Name:      "probe_duration_seconds",
			Help:      "Latency of handle preview probes.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// ServeMetrics exposes /metrics on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()
}
