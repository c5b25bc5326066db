package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/d60-Lab/chirper/config"
	"github.com/d60-Lab/chirper/pkg/logger"
)

const flushTimeout = 5 * time.Second

// Connect 建立 NATS 连接，断线无限重连
func Connect(cfg config.NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("chirper"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	return nats.Connect(cfg.URL, opts...)
}

// Subject 事件类型对应的 subject
func Subject(prefix string, t Type) string { return prefix + "." + string(t) }

// NATSSink 把事件发布到 <prefix>.<type>
type NATSSink struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSSink(nc *nats.Conn, prefix string) *NATSSink {
	return &NATSSink{nc: nc, prefix: prefix}
}

// Deliver 发布并 flush，返回 nil 表示服务端已收到
func (s *NATSSink) Deliver(_ context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := s.nc.Publish(Subject(s.prefix, env.Type), data); err != nil {
		return err
	}
	return s.nc.FlushTimeout(flushTimeout)
}

// Subscribe 以队列组订阅全部事件并交给 dispatcher；
// 同一队列组内的多个实例分摊消息
func Subscribe(nc *nats.Conn, prefix, queue string, d *Dispatcher) (*nats.Subscription, error) {
	return nc.QueueSubscribe(prefix+".>", queue, func(m *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			logger.Warn("drop malformed event", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		d.Enqueue(env)
	})
}
