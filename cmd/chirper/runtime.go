package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/chirper/config"
	"github.com/d60-Lab/chirper/internal/app"
	"github.com/d60-Lab/chirper/internal/event"
	"github.com/d60-Lab/chirper/internal/service"
	"github.com/d60-Lab/chirper/pkg/cache"
	"github.com/d60-Lab/chirper/pkg/database"
	"github.com/d60-Lab/chirper/pkg/logger"
	"github.com/d60-Lab/chirper/pkg/response"
	"github.com/d60-Lab/chirper/pkg/tracing"
)

// runtime 各子命令共用的进程级依赖
type runtime struct {
	cfg     *config.Config
	stores  *database.Stores
	cache   cache.Cache
	app     *app.App
	closers []func(context.Context) error
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	response.SetHideInternal(cfg.IsRelease())

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		SampleRate:       cfg.Sentry.SampleRate,
		AttachStacktrace: true,
	}); err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}

	rt := &runtime{cfg: cfg}
	rt.closers = append(rt.closers, func(context.Context) error {
		sentry.Flush(2 * time.Second)
		return nil
	})

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, shutdownTracing)

	if rt.stores, err = database.Open(cfg); err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func(context.Context) error { return rt.stores.Close() })
	if cfg.Database.AutoMigrate {
		if err := rt.stores.Migrate(); err != nil {
			return nil, err
		}
	}

	client := cache.NewRedis(cfg.Redis)
	rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
	rt.cache = cache.New(client)
	if err := rt.cache.Ping(ctx); err != nil {
		// 缓存不可用时读写直接走库
		logger.Warn("redis unreachable, profile cache degraded", zap.Error(err))
	}

	rt.app = app.New(cfg, rt.stores, rt.cache)
	return rt, nil
}

// sink 按配置选择 relay 的投递目标
func (rt *runtime) sink() (event.Sink, error) {
	if rt.cfg.Outbox.Transport != "nats" {
		return rt.app.Events, nil
	}
	nc, err := event.Connect(rt.cfg.NATS)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func(context.Context) error { return nc.Drain() })
	return event.NewNATSSink(nc, rt.cfg.NATS.SubjectPrefix), nil
}

// startRelays 启动所有 relay 与清理任务，返回统一的 stop
func (rt *runtime) startRelays() error {
	sink, err := rt.sink()
	if err != nil {
		return err
	}
	relays := rt.app.Relays(sink)
	for _, r := range relays {
		stop := r.Start()
		rt.closers = append(rt.closers, stop)
	}
	stopJanitor, err := service.StartJanitor(rt.cfg.Outbox.PurgeSchedule, rt.cfg.Outbox.Retention, relays...)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, stopJanitor)
	logger.Info("outbox relays started", zap.Int("count", len(relays)), zap.String("transport", rt.cfg.Outbox.Transport))
	return nil
}

// close 逆序关闭
func (rt *runtime) close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
	logger.Sync()
}

func signalCh() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}
