package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/oncoayuda/casework/internal/kurrentdb"
	"github.com/oncoayuda/casework/internal/shared/config"
	"github.com/oncoayuda/casework/internal/shared/events"
)

// Sink names accepted by NOTIFICATION_SINK.
const (
	SinkLog       = "log"
	SinkRedis     = "redis"
	SinkKafka     = "kafka"
	SinkKurrentDB = "kurrentdb"
)

// NewPublisher builds the publisher selected by cfg.Notification.Sink.
func NewPublisher(ctx context.Context, cfg *config.Config, log *zap.Logger) (events.Publisher, error) {
	switch cfg.Notification.Sink {
	case SinkLog, "":
		return NewLogPublisher(log), nil
	case SinkRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedisPublisher(client, cfg.Redis.Stream, cfg.Redis.MaxLen), nil
	case SinkKafka:
		client, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.ClientID(cfg.Kafka.ClientID),
			kgo.DefaultProduceTopic(cfg.Kafka.Topic),
			kgo.RequiredAcks(kgo.AllISRAcks()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka client: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to reach kafka: %w", err)
		}
		return NewKafkaPublisher(client), nil
	case SinkKurrentDB:
		client, err := kurrentdb.Dial(ctx, kurrentdb.FromConfig(cfg.KurrentDB))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to kurrentdb: %w", err)
		}
		return kurrentdb.NewPublisher(client), nil
	default:
		return nil, fmt.Errorf("unknown notification sink %q", cfg.Notification.Sink)
	}
}

// LogPublisher writes events to the log. It is the development sink.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("notification.sink")}
}

func (p *LogPublisher) Publish(_ context.Context, event events.Event) error {
	p.log.Info("workflow event",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("subject", event.Subject),
		zap.String("actor_id", event.ActorID.String()),
		zap.Any("data", event.Data),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// RedisPublisher appends events to a Redis stream consumed by the messaging service.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"id":      event.ID,
			"type":    event.Type,
			"subject": event.Subject,
			"payload": string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append event %s to %s: %w", event.ID, p.stream, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// producer is the part of *kgo.Client the Kafka publisher needs.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher produces events keyed by entity code, keeping per-entity order.
type KafkaPublisher struct {
	client producer
}

func NewKafkaPublisher(client *kgo.Client) *KafkaPublisher {
	return &KafkaPublisher{client: client}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event events.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(event.Subject),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce event %s: %w", event.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}
