package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/d60-Lab/chirper/pkg/logger"
)

func newRelayCommand() *cli.Command {
	return &cli.Command{
		Name:  "relay",
		Usage: "deliver outbox events until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "transport",
				Usage: "override outbox.transport (local or nats)",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := bootstrap(c.Context)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				rt.close(ctx)
			}()
			if t := c.String("transport"); t != "" {
				rt.cfg.Outbox.Transport = t
				if err := rt.cfg.Validate(); err != nil {
					return cli.Exit(err.Error(), 1)
				}
			}
			if err := rt.startRelays(); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			sig := <-signalCh()
			logger.Info("relay stopping", zap.String("signal", sig.String()))
			return nil
		},
	}
}
