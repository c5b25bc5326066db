package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/d60-Lab/chirper/pkg/logger"
)

// Handler 事件消费者
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

type HandlerFunc func(ctx context.Context, env Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error { return f(ctx, env) }

// Sink relay 的投递目标
type Sink interface {
	Deliver(ctx context.Context, env Envelope) error
}

type route struct {
	name    string
	handler Handler
}

// Router 按事件类型分发给已注册的消费者，本身也是一个 Sink
type Router struct {
	mu     sync.RWMutex
	routes map[Type][]route
}

func NewRouter() *Router { return &Router{routes: map[Type][]route{}} }

// Handle 为若干事件类型注册消费者
func (r *Router) Handle(name string, h Handler, types ...Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		r.routes[t] = append(r.routes[t], route{name: name, handler: h})
	}
}

// Deliver 依次调用全部消费者；任一失败都返回错误，由上游整体重投
func (r *Router) Deliver(ctx context.Context, env Envelope) error {
	r.mu.RLock()
	routes := r.routes[env.Type]
	r.mu.RUnlock()

	if len(routes) == 0 {
		logger.Debug("no consumer for event", zap.String("type", string(env.Type)), zap.String("id", env.ID))
		return nil
	}
	var errs []error
	for _, rt := range routes {
		if err := rt.handler.Handle(ctx, env); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rt.name, err))
		}
	}
	return errors.Join(errs...)
}
