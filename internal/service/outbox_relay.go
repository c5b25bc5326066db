package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/chirper/config"
	"github.com/d60-Lab/chirper/internal/event"
	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/repository"
	"github.com/d60-Lab/chirper/pkg/logger"
)

// OutboxRelay 从某个库的 outbox 拉取事件并投递到 sink。
// 一批事件按 AggregateID 分道并发投递，同一聚合内严格按写入顺序；
// 某条失败后，同一聚合在本批剩余的事件原样放回，等下一轮重试。
type OutboxRelay struct {
	name         string
	outbox       repository.OutboxRepository
	sink         event.Sink
	limiter      *rate.Limiter
	lanes        int
	claimLimit   int
	maxAttempts  int
	pollInterval time.Duration
	lease        time.Duration
	metricsCh    chan time.Duration // outbox->delivered latency
}

func NewOutboxRelay(name string, outbox repository.OutboxRepository, sink event.Sink, cfg config.OutboxConfig) *OutboxRelay {
	r := &OutboxRelay{
		name:         name,
		outbox:       outbox,
		sink:         sink,
		lanes:        cfg.Workers,
		claimLimit:   cfg.ClaimLimit,
		maxAttempts:  cfg.MaxAttempts,
		pollInterval: cfg.PollInterval,
		lease:        cfg.Lease,
		metricsCh:    make(chan time.Duration, 4096),
	}
	if r.lanes <= 0 {
		r.lanes = 2
	}
	if r.claimLimit <= 0 {
		r.claimLimit = 64
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = 10
	}
	if r.pollInterval <= 0 {
		r.pollInterval = 200 * time.Millisecond
	}
	if r.lease <= 0 {
		r.lease = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	r.limiter = rate.NewLimiter(limit, burst)
	return r
}

func (r *OutboxRelay) Name() string { return r.name }

func (r *OutboxRelay) Metrics() <-chan time.Duration { return r.metricsCh }

// Start 启动轮询；返回停止函数，等待当前批次结束
func (r *OutboxRelay) Start() func(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.loop(ctx)
	}()
	return func(stopCtx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}
}

func (r *OutboxRelay) loop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		// 积压时连续处理，直到一批不满
		for {
			n, err := r.ProcessOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("outbox relay batch failed", zap.String("relay", r.name), zap.Error(err))
				}
				break
			}
			if n < r.claimLimit || ctx.Err() != nil {
				break
			}
		}
	}
}

// ProcessOnce 领取并投递一批事件，返回领取数量
func (r *OutboxRelay) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := r.outbox.Claim(ctx, r.claimLimit, r.lease)
	if err != nil {
		return 0, fmt.Errorf("claim outbox: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	lanes := make([][]model.OutboxEvent, r.lanes)
	for _, evt := range batch {
		i := int(evt.AggregateID % uint(r.lanes))
		lanes[i] = append(lanes[i], evt)
	}

	var wg sync.WaitGroup
	for _, lane := range lanes {
		if len(lane) == 0 {
			continue
		}
		wg.Add(1)
		go func(events []model.OutboxEvent) {
			defer wg.Done()
			r.processLane(ctx, events)
		}(lane)
	}
	wg.Wait()
	return len(batch), nil
}

func (r *OutboxRelay) processLane(ctx context.Context, events []model.OutboxEvent) {
	blocked := map[uint]bool{}
	for _, evt := range events {
		// 释放用独立 context，停机时也能把事件放回
		bg := context.Background()
		if blocked[evt.AggregateID] || ctx.Err() != nil {
			r.release(bg, evt, false, "")
			continue
		}
		if err := r.limiter.Wait(ctx); err != nil {
			r.release(bg, evt, false, "")
			continue
		}

		deliverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := r.sink.Deliver(deliverCtx, event.FromOutbox(evt))
		cancel()

		if err == nil {
			if mErr := r.outbox.MarkDone(bg, evt.ID); mErr != nil {
				logger.Error("outbox mark done failed", zap.String("relay", r.name), zap.String("id", evt.ID), zap.Error(mErr))
			}
			select {
			case r.metricsCh <- time.Since(evt.CreatedAt):
			default:
			}
			continue
		}

		blocked[evt.AggregateID] = true
		if evt.Attempts+1 >= r.maxAttempts {
			logger.Error("outbox event failed permanently",
				zap.String("relay", r.name),
				zap.String("id", evt.ID),
				zap.String("type", evt.EventType),
				zap.Int("attempts", evt.Attempts+1),
				zap.Error(err),
			)
			if mErr := r.outbox.MarkFailed(bg, evt.ID, err.Error()); mErr != nil {
				logger.Error("outbox mark failed failed", zap.String("id", evt.ID), zap.Error(mErr))
			}
			continue
		}
		logger.Warn("outbox delivery failed, will retry",
			zap.String("relay", r.name),
			zap.String("id", evt.ID),
			zap.String("type", evt.EventType),
			zap.Error(err),
		)
		r.release(bg, evt, true, err.Error())
	}
}

func (r *OutboxRelay) release(ctx context.Context, evt model.OutboxEvent, countAttempt bool, lastErr string) {
	if err := r.outbox.Release(ctx, evt.ID, countAttempt, lastErr); err != nil {
		logger.Error("outbox release failed", zap.String("relay", r.name), zap.String("id", evt.ID), zap.Error(err))
	}
}

// Purge 删除投递完成且超过保留期的事件
func (r *OutboxRelay) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return r.outbox.Purge(ctx, time.Now().Add(-retention))
}

// StartJanitor 按 cron 表达式定期清理各 relay 的 outbox
func StartJanitor(schedule string, retention time.Duration, relays ...*OutboxRelay) (func(context.Context) error, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		for _, r := range relays {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			n, err := r.Purge(ctx, retention)
			cancel()
			if err != nil {
				logger.Warn("outbox purge failed", zap.String("relay", r.name), zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("outbox purged", zap.String("relay", r.name), zap.Int64("rows", n))
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	c.Start()
	return func(ctx context.Context) error {
		select {
		case <-c.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, nil
}
