package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/activecm/beaconwatch/alerts"
	"github.com/activecm/beaconwatch/config"
	"github.com/activecm/beaconwatch/database"
	"github.com/activecm/beaconwatch/enrich"
	zlog "github.com/activecm/beaconwatch/logger"
	"github.com/activecm/beaconwatch/metrics"
	"github.com/activecm/beaconwatch/scheduler"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

var MonitorCommand = &cli.Command{
	Name:      "monitor",
	Usage:     "run the periodic analysis scheduler and metrics endpoint",
	UsageText: "monitor [--config FILE]",
	Flags:     []cli.Flag{ConfigFlag(false)},
	Action: func(cCtx *cli.Context) error {
		afs := afero.NewOsFs()

		cfg, err := config.ReadFileConfig(afs, cCtx.String("config"))
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return RunMonitorCmd(ctx, cfg, afs)
	},
}

// RunMonitorCmd runs the scheduler's periodic analysis loop alongside the
// /metrics server until ctx is cancelled.
func RunMonitorCmd(ctx context.Context, cfg *config.Config, afs afero.Fs) error {
	logger := zlog.GetLogger()

	db, err := database.ConnectToDB(ctx, cfg.Database.Name, cfg, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	resolver := enrich.NewSystemResolver()
	alertStore := alerts.NewStore(afs, cfg.Scheduler.AlertsPath)

	sched := scheduler.New(db, *cfg, resolver, alertStore)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics) })
	g.Go(func() error { return sched.Run(gctx) })

	logger.Info().Str("bind_address", cfg.Metrics.BindAddress).Msg("monitor started")

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
