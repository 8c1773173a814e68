package cmd

import (
	"context"
	"time"

	"github.com/activecm/beaconwatch/alerts"
	"github.com/activecm/beaconwatch/config"
	"github.com/activecm/beaconwatch/database"
	"github.com/activecm/beaconwatch/enrich"
	zlog "github.com/activecm/beaconwatch/logger"
	"github.com/activecm/beaconwatch/scheduler"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

var AnalyzeCommand = &cli.Command{
	Name:      "analyze",
	Usage:     "run a single on-demand analysis pass over the trailing window",
	UsageText: "analyze [--config FILE]",
	Flags:     []cli.Flag{ConfigFlag(false)},
	Action: func(cCtx *cli.Context) error {
		afs := afero.NewOsFs()

		cfg, err := config.ReadFileConfig(afs, cCtx.String("config"))
		if err != nil {
			return err
		}

		return RunAnalyzeCmd(context.Background(), cfg, afs)
	},
}

// RunAnalyzeCmd executes exactly one scheduler pass over
// cfg.Scheduler.OnDemandWindowSeconds and returns once it completes,
// unlike `monitor`'s unending periodic loop.
func RunAnalyzeCmd(ctx context.Context, cfg *config.Config, afs afero.Fs) error {
	logger := zlog.GetLogger()

	db, err := database.ConnectToDB(ctx, cfg.Database.Name, cfg, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	resolver := enrich.NewSystemResolver()
	alertStore := alerts.NewStore(afs, cfg.Scheduler.AlertsPath)
	sched := scheduler.New(db, *cfg, resolver, alertStore)

	window := time.Duration(cfg.Scheduler.OnDemandWindowSeconds) * time.Second

	logger.Info().Dur("window", window).Msg("starting on-demand analysis pass")

	if err := sched.RunOnce(ctx, window); err != nil {
		return err
	}

	logger.Info().Msg("on-demand analysis pass finished")
	return nil
}
