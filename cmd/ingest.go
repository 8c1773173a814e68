package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/activecm/beaconwatch/config"
	"github.com/activecm/beaconwatch/database"
	"github.com/activecm/beaconwatch/ingest"
	zlog "github.com/activecm/beaconwatch/logger"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
)

var IngestCommand = &cli.Command{
	Name:      "ingest",
	Usage:     "tail a conn log and write flow records into the flow store",
	UsageText: "ingest [--config FILE] [--once]",
	Flags: []cli.Flag{
		ConfigFlag(false),
		&cli.BoolFlag{
			Name:     "once",
			Usage:    "scan the current backlog once and exit instead of following the file",
			Value:    false,
			Required: false,
		},
	},
	Action: func(cCtx *cli.Context) error {
		afs := afero.NewOsFs()

		cfg, err := config.ReadFileConfig(afs, cCtx.String("config"))
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return RunIngestCmd(ctx, cfg, afs, cCtx.Bool("once"))
	},
}

// RunIngestCmd wires a Tailer to the flow store's BulkWriter, either draining
// the current backlog once (once=true) or following the file until ctx is
// cancelled.
func RunIngestCmd(ctx context.Context, cfg *config.Config, afs afero.Fs, once bool) error {
	logger := zlog.GetLogger()

	db, err := database.ConnectToDB(ctx, cfg.Database.Name, cfg, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	limiter := rate.NewLimiter(rate.Every(time.Millisecond), int(cfg.Database.BatchSize))
	writer := database.NewBulkWriter(db, cfg, 4, db.GetSelectedDB(), "conn-log", "INSERT INTO {database:Identifier}.conn_log", limiter, false)
	for i := 0; i < 4; i++ {
		writer.Start(i)
	}

	tailer, err := ingest.NewTailer(afs, cfg.Ingest)
	if err != nil {
		return err
	}

	records := make(chan database.FlowRecord, 1024)
	done := make(chan error, 1)
	go func() {
		defer close(records)
		if once {
			done <- tailer.ReadBacklog(ctx, records)
			return
		}
		done <- tailer.Run(ctx, records)
	}()

	var bar *mpb.Bar
	var progress *mpb.Progress
	if once && cfg.Ingest.BacklogProgress {
		progress = mpb.New(mpb.WithWidth(64))
		bar = progress.New(0,
			mpb.BarStyle().Lbound("╢").Filler("▌").Tip("▌").Padding("░").Rbound("╟"),
			mpb.PrependDecorators(decor.Name("Ingesting backlog", decor.WC{C: decor.DindentRight | decor.DextraSpace})),
			mpb.AppendDecorators(decor.Any(func(_ decor.Statistics) string {
				return fmt.Sprintf("%d lines", tailer.LinesRead())
			})),
		)
	}

	for rec := range records {
		writer.WriteChannel <- &rec
		if bar != nil {
			bar.SetCurrent(int64(tailer.LinesRead()))
		}
	}

	if bar != nil {
		bar.SetCurrent(int64(tailer.LinesRead()))
		bar.Abort(false)
	}

	if err := writer.Close(); err != nil {
		return err
	}

	if err := <-done; err != nil && err != context.Canceled {
		return err
	}

	logger.Info().Int("lines_ingested", tailer.LinesRead()).Msg("ingest finished")
	return nil
}
