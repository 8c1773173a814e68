package cmd

import (
	"context"

	"github.com/activecm/beaconwatch/config"
	"github.com/activecm/beaconwatch/database"
	"github.com/activecm/beaconwatch/enrich"
	"github.com/activecm/beaconwatch/viewer"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

var ViewCommand = &cli.Command{
	Name:      "view",
	Usage:     "browse recent detection results in a terminal UI",
	UsageText: "view [--config FILE]",
	Flags:     []cli.Flag{ConfigFlag(false)},
	Action: func(cCtx *cli.Context) error {
		afs := afero.NewOsFs()

		cfg, err := config.ReadFileConfig(afs, cCtx.String("config"))
		if err != nil {
			return err
		}

		db, err := database.ConnectToDB(context.Background(), cfg.Database.Name, cfg, nil)
		if err != nil {
			return err
		}
		defer db.Close()

		return viewer.CreateUI(db, enrich.NewSystemResolver())
	},
}
