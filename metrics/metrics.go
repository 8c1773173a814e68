// Package metrics exposes prometheus counters/histograms for the ingester
// and scheduler, and a bare chi mux to serve them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/activecm/beaconwatch/config"
	"github.com/activecm/beaconwatch/logger"
)

var (
	// HostsAnalyzed counts hosts processed across all analysis passes.
	HostsAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beaconwatch_hosts_analyzed_total",
		Help: "Total number of hosts analyzed in scheduler passes.",
	})

	// DetectionsTotal counts hosts that crossed the detection threshold.
	DetectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beaconwatch_detections_total",
		Help: "Total number of hosts flagged as beaconing.",
	})

	// PassDuration observes the wall-clock duration of each scheduler pass.
	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "beaconwatch_pass_duration_seconds",
		Help:    "Duration of each scheduler analysis pass.",
		Buckets: prometheus.DefBuckets,
	})

	// FlowsIngested counts flow records parsed by the tailer and handed to the
	// flow-store writer; it is incremented before the batch insert happens.
	FlowsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beaconwatch_flows_ingested_total",
		Help: "Total number of conn.log lines successfully ingested.",
	})
)

// Serve starts a bare /metrics HTTP server bound to cfg.BindAddress if
// metrics are enabled. It blocks until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, cfg config.Metrics) error {
	if !cfg.Enabled {
		return nil
	}

	zlog := logger.GetLogger()

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.BindAddress, Handler: r}

	errc := make(chan error, 1)
	go func() {
		zlog.Info().Str("address", cfg.BindAddress).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}
