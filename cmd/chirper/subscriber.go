package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/d60-Lab/chirper/internal/event"
	"github.com/d60-Lab/chirper/pkg/logger"
)

func newSubscriberCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscriber",
		Usage: "consume events from NATS into the search index and notifications",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "lanes", Value: 4, Usage: "concurrent per-aggregate lanes"},
			&cli.IntFlag{Name: "queue-size", Value: 1024, Usage: "buffer per lane"},
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

			nc, err := event.Connect(rt.cfg.NATS)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			d := event.NewDispatcher(rt.app.Events, c.Int("lanes"), c.Int("queue-size"), rt.cfg.Outbox.MaxAttempts)
			stop := d.Start()

			sub, err := event.Subscribe(nc, rt.cfg.NATS.SubjectPrefix, rt.cfg.NATS.Queue, d)
			if err != nil {
				nc.Close()
				return cli.Exit(err.Error(), 1)
			}
			logger.Info("subscriber started", zap.String("subject", sub.Subject), zap.String("queue", sub.Queue))

			sig := <-signalCh()
			logger.Info("subscriber stopping", zap.String("signal", sig.String()))

			// 先停止接收，再等队列里的事件处理完
			_ = sub.Unsubscribe()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := stop(ctx); err != nil {
				logger.Warn("dispatcher drain incomplete", zap.Int("pending", d.QueueLen()), zap.Error(err))
			}
			nc.Close()
			return nil
		},
	}
}
