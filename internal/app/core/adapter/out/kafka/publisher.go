package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-vault/internal/app/core/usecase"
)

const (
	// DefaultTopic 預設的通知 topic
	DefaultTopic = "vault_events"
	// DefaultBatchTimeout kafka-go 預設為 1s，每筆存提款都會被拖慢
	DefaultBatchTimeout = 10 * time.Millisecond
	DefaultWriteTimeout = 5 * time.Second
)

// Config Kafka 通知設定
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// BatchTimeout 未湊滿 BatchSize 時最多等待多久送出
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	BatchSize    int           `yaml:"batch_size"`
	// Async 為 true 時 Publish 不等待 broker 回應，失敗只記錄
	Async bool `yaml:"async"`
}

// ApplyDefaults 補全預設配置
func (c *Config) ApplyDefaults() {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// Publisher 把存款/提款通知寫入 Kafka
// 以帳戶地址作為 key，同一帳戶的通知落在同一個 partition，保持順序
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher 建立 Kafka 通知發送者
//
// 參數:
//
//	cfg: Config - Kafka 設定 (未填的欄位套用預設值)
//	logger: *zap.Logger - 非同步模式下記錄送出失敗
func NewPublisher(cfg Config, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	p := &Publisher{logger: logger}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           cfg.BatchTimeout,
		BatchSize:              cfg.BatchSize,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: true,
	}
	if cfg.Async {
		p.writer.Completion = p.completion
	}
	return p
}

// completion 非同步寫入完成的回呼
func (p *Publisher) completion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, message := range messages {
		p.logger.Error("failed to deliver event",
			zap.String("topic", p.writer.Topic),
			zap.ByteString("key", message.Key),
			zap.ByteString("event", message.Value),
			zap.Error(err),
		)
	}
}

// Publish implements usecase.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	message, err := newMessage(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, message)
}

func newMessage(event domain.Event) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.Account.Hex()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.Kind.String())},
		},
		Time: event.OccurredAt,
	}, nil
}

// Close 關閉 writer，送出剩餘訊息
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ usecase.EventPublisher = (*Publisher)(nil)
