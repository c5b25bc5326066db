package main

import (
	"github.com/urfave/cli/v2"

	"github.com/d60-Lab/chirper/config"
	"github.com/d60-Lab/chirper/pkg/database"
	"github.com/d60-Lab/chirper/pkg/logger"
)

func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create or update tables in every store",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer logger.Sync()
			stores, err := database.Open(cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer stores.Close()
			if err := stores.Migrate(); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			logger.Info("migration finished")
			return nil
		},
	}
}
