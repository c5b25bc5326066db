package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/d60-Lab/chirper/internal/api/handler"
	"github.com/d60-Lab/chirper/pkg/logger"
)

func newAPICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "serve the HTTP API",
		Action: func(c *cli.Context) error {
			if err := runAPI(c.Context); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

func runAPI(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rt.close(shutdownCtx)
	}()

	pingDB := func(ctx context.Context) error {
		sqlDB, err := rt.stores.Users.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	checks := map[string]handler.HealthCheck{"cache": rt.cache.Ping, "database": pingDB}
	engine, err := rt.app.Engine(checks)
	if err != nil {
		return err
	}

	if rt.cfg.Server.RunRelay {
		if err := rt.startRelays(); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  rt.cfg.Server.ReadTimeout,
		WriteTimeout: rt.cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-signalCh():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
