package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"shortlink.local/internal/platform/metrics"
)

// Broadcaster 把“某个短码已失效”通知给其它实例。
type Broadcaster interface {
	Publish(ctx context.Context, code string) error
	Close() error
}

// invalidation 是 Kafka 消息体；Origin 用来跳过本实例自己发出的消息。
type invalidation struct {
	Code   string `json:"code"`
	Origin string `json:"origin"`
}

type KafkaBroadcaster struct {
	writer *kafka.Writer
	origin string
}

var _ Broadcaster = (*KafkaBroadcaster)(nil)

func NewKafkaBroadcaster(brokers []string, topic, origin string) *KafkaBroadcaster {
	return &KafkaBroadcaster{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		origin: origin,
	}
}

func (k *KafkaBroadcaster) Publish(ctx context.Context, code string) error {
	data, err := json.Marshal(invalidation{Code: code, Origin: k.origin})
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(code),
		Value: data,
	})
}

func (k *KafkaBroadcaster) Close() error {
	return k.writer.Close()
}

// InvalidationListener 消费失效广播并删除本实例的 L1 条目。
//
// 每个实例用独立的 consumer group，所以每条广播都会被所有实例收到；
// 新实例从最新位置开始读，启动前的失效与它无关（它的 L1 是空的）。
type InvalidationListener struct {
	reader *kafka.Reader
	local  *LocalCache
	origin string
}

func NewInvalidationListener(brokers []string, topic, origin string, local *LocalCache) *InvalidationListener {
	return &InvalidationListener{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     "shortlink-l1-" + origin,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    1e6,
			MaxWait:     500 * time.Millisecond,
		}),
		local:  local,
		origin: origin,
	}
}

// Run 阻塞消费直到 ctx 结束。
func (l *InvalidationListener) Run(ctx context.Context) {
	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("kafka read invalidation failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		l.handle(msg.Value)
	}
}

func (l *InvalidationListener) handle(value []byte) {
	var ev invalidation
	if err := json.Unmarshal(value, &ev); err != nil {
		slog.Error("unmarshal invalidation failed", "err", err)
		return
	}
	if ev.Code == "" || ev.Origin == l.origin {
		return
	}
	l.local.Del(ev.Code)
	metrics.CacheOperations.WithLabelValues("l1", "remote_invalidate").Inc()
	slog.Debug("l1 entry dropped by broadcast", "code", ev.Code, "origin", ev.Origin)
}

func (l *InvalidationListener) Close() error {
	return l.reader.Close()
}
