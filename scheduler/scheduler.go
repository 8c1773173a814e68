// Package scheduler runs periodic (and on-demand) analysis passes: for every
// host seen in the configured window, pull its flow samples, extract
// features, fuse a score, persist the detection record, and publish an
// alert if the host crossed the threshold.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/activecm/beaconwatch/alerts"
	"github.com/activecm/beaconwatch/config"
	"github.com/activecm/beaconwatch/database"
	"github.com/activecm/beaconwatch/enrich"
	"github.com/activecm/beaconwatch/feature"
	"github.com/activecm/beaconwatch/logger"
	"github.com/activecm/beaconwatch/metrics"
	"github.com/activecm/beaconwatch/score"
)

// Store is the subset of *database.DB a Scheduler needs.
type Store interface {
	HostsInWindow(ctx context.Context, start, end time.Time) ([]string, error)
	HostWindowSamples(ctx context.Context, host string, start, end time.Time) ([]database.WindowSample, error)
	InsertDetectionResult(ctx context.Context, rec database.DetectionResult) error
}

// Scheduler owns the periodic analysis pass.
type Scheduler struct {
	store    Store
	cfg      config.Config
	resolver enrich.NeighborResolver
	alerts   *alerts.Store
}

// New builds a Scheduler over store using cfg's scheduler/scoring settings.
func New(store Store, cfg config.Config, resolver enrich.NeighborResolver, alertStore *alerts.Store) *Scheduler {
	return &Scheduler{store: store, cfg: cfg, resolver: resolver, alerts: alertStore}
}

// Run fires one analysis pass every cfg.Scheduler.IntervalSeconds until ctx
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.Scheduler.IntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx, time.Duration(s.cfg.Scheduler.WindowSeconds)*time.Second); err != nil {
			logger.GetLogger().Error().Err(err).Msg("analysis pass failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single analysis pass over the trailing window of the
// given duration, ending now.
func (s *Scheduler) RunOnce(ctx context.Context, window time.Duration) error {
	passID := uuid.NewString()
	zlog := logger.GetLogger().With().Str("pass_id", passID).Logger()

	end := time.Now().UTC()
	start := end.Add(-window)

	passStart := time.Now()
	hosts, err := s.store.HostsInWindow(ctx, start, end)
	if err != nil {
		return err
	}
	zlog.Info().Int("host_count", len(hosts)).Msg("starting analysis pass")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	// alerts raised this pass, indexed by each host's position in hosts so
	// they can be appended to the alert store in host-iteration order
	// regardless of which goroutine happened to finish first
	pending := make([]*alerts.Alert, len(hosts))

	for i, host := range hosts {
		i, host := i, host
		g.Go(func() error {
			pending[i] = s.analyzeHost(gctx, host, start, end, passID, zlog)
			return nil
		})
	}

	err = g.Wait()
	metrics.PassDuration.Observe(time.Since(passStart).Seconds())
	if err != nil {
		return err
	}

	for _, alert := range pending {
		if alert == nil {
			continue
		}
		if err := s.alerts.Append(*alert); err != nil {
			zlog.Error().Err(err).Str("host", alert.Host).Msg("unable to append alert")
		}
	}

	return nil
}

// analyzeHost scores a single host's window and persists the detection
// result, returning a non-nil alert if the host crossed the detection
// threshold. The caller is responsible for appending the returned alert to
// the alert store in host-iteration order.
func (s *Scheduler) analyzeHost(ctx context.Context, host string, start, end time.Time, passID string, zlog zerolog.Logger) *alerts.Alert {
	samples, err := s.store.HostWindowSamples(ctx, host, start, end)
	if err != nil {
		zlog.Error().Err(err).Str("host", host).Msg("unable to fetch window samples")
		return nil
	}

	series := feature.Resample(samples, start, end)
	features := feature.Extract(series)
	result := score.Fuse(features, s.cfg.Scoring)

	metrics.HostsAnalyzed.Inc()

	rec := database.DetectionResult{
		Host:        host,
		AnalyzedAt:  end,
		PScore:      result.PScore,
		FFTPeak:     result.FFTPeak,
		AutocorrMax: result.AutocorrMax,
		EntropyNorm: result.EntropyNorm,
		SampleCount: uint32(features.SampleCount),
		Detected:    result.Detected,
		PassID:      passID,
	}

	if err := s.store.InsertDetectionResult(ctx, rec); err != nil {
		zlog.Error().Err(err).Str("host", host).Msg("unable to persist detection result")
	}

	if !result.Detected {
		return nil
	}

	metrics.DetectionsTotal.Inc()
	displayHost := s.resolver.Resolve(host)

	zlog.Info().Str("host", host).Str("display_host", displayHost).Float64("p_score", result.PScore).Msg("beacon detected")

	return &alerts.Alert{
		Timestamp:   time.Now().UTC(),
		Host:        host,
		DisplayHost: displayHost,
		PScore:      result.PScore,
		FFTPeak:     result.FFTPeak,
		AutocorrMax: result.AutocorrMax,
		EntropyNorm: result.EntropyNorm,
		Samples:     features.SampleCount,
	}
}
