package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/chirper/pkg/logger"
)

type dispatchJob struct {
	env   Envelope
	enqAt time.Time
}

// Dispatcher 本地异步执行器：按 AggregateID 分道，同一聚合的事件在同一条道上顺序执行
type Dispatcher struct {
	sink        Sink
	lanes       []chan dispatchJob
	maxAttempts int
	backoff     time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	metricsCh   chan time.Duration
}

func NewDispatcher(sink Sink, lanes, queueSize, maxAttempts int) *Dispatcher {
	if lanes <= 0 {
		lanes = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	d := &Dispatcher{
		sink:        sink,
		lanes:       make([]chan dispatchJob, lanes),
		maxAttempts: maxAttempts,
		backoff:     100 * time.Millisecond,
		stopCh:      make(chan struct{}),
		metricsCh:   make(chan time.Duration, 4096),
	}
	for i := range d.lanes {
		d.lanes[i] = make(chan dispatchJob, queueSize)
	}
	return d
}

// Start 每条道一个 worker；返回的停止函数会先排空队列
func (d *Dispatcher) Start() func(context.Context) error {
	for _, ch := range d.lanes {
		d.wg.Add(1)
		go d.work(ch)
	}
	return func(ctx context.Context) error {
		d.stopOnce.Do(func() { close(d.stopCh) })
		done := make(chan struct{})
		go func() { d.wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) work(ch chan dispatchJob) {
	defer d.wg.Done()
	for {
		select {
		case job := <-ch:
			d.process(job)
		case <-d.stopCh:
			for {
				select {
				case job := <-ch:
					d.process(job)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) process(job dispatchJob) {
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = d.sink.Deliver(ctx, job.env)
		cancel()
		if err == nil {
			break
		}
		if attempt < d.maxAttempts {
			time.Sleep(d.backoff * time.Duration(attempt))
		}
	}
	if err != nil {
		logger.Error("event dispatch failed",
			zap.String("id", job.env.ID),
			zap.String("type", string(job.env.Type)),
			zap.Int("attempts", d.maxAttempts),
			zap.Error(err),
		)
	}
	select {
	case d.metricsCh <- time.Since(job.enqAt):
	default:
	}
}

// Enqueue 队列满时阻塞，向上游施加背压；停止后丢弃
func (d *Dispatcher) Enqueue(env Envelope) {
	ch := d.lanes[int(env.AggregateID%uint(len(d.lanes)))]
	job := dispatchJob{env: env, enqAt: time.Now()}
	select {
	case ch <- job:
		return
	case <-d.stopCh:
		logger.Warn("dispatcher stopped, drop event", zap.String("id", env.ID))
		return
	default:
	}
	logger.Warn("dispatcher lane full, waiting", zap.String("type", string(env.Type)))
	select {
	case ch <- job:
	case <-d.stopCh:
		logger.Warn("dispatcher stopped, drop event", zap.String("id", env.ID))
	}
}

// QueueLen 当前排队总数（采样值）
func (d *Dispatcher) QueueLen() int {
	n := 0
	for _, ch := range d.lanes {
		n += len(ch)
	}
	return n
}

// Metrics 入队到处理完成的耗时
func (d *Dispatcher) Metrics() <-chan time.Duration { return d.metricsCh }
