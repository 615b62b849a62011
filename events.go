package ledgerx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

//go:generate mockgen -destination=mocks/mock_events.go -package=mocks . Publisher

const (
	EventsDriverNone  = "none"
	EventsDriverKafka = "kafka"
	EventsDriverRedis = "redis"

	DefaultMovementsTopic = "ledgerx.movements"

	// DefaultKafkaBatchTimeout bounds how long a synchronous write waits for its batch.
	DefaultKafkaBatchTimeout = 10 * time.Millisecond
)

// MovementEvent announces a committed movement.
type MovementEvent struct {
	EventID    uuid.UUID `json:"eventId"`
	Operation  string    `json:"operation"`
	Movement   Movement  `json:"movement"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewMovementEvents(op string, movs []Movement) []MovementEvent {
	evts := make([]MovementEvent, 0, len(movs))
	for _, m := range movs {
		evts = append(evts, MovementEvent{
			EventID:    uuid.New(),
			Operation:  op,
			Movement:   m,
			OccurredAt: m.Date,
		})
	}
	return evts
}

// Publisher delivers movement events after the ledger has committed them.
type Publisher interface {
	Publish(ctx context.Context, events []MovementEvent) error
	Close() error
}

func NewPublisher(cfg EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case "", EventsDriverNone:
		return NopPublisher{}, nil
	case EventsDriverKafka:
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("events: kafka driver needs at least one broker")
		}
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic, cfg.BatchTimeout), nil
	case EventsDriverRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("events: redis driver needs redis_addr")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		return NewRedisPublisher(rdb, cfg.Topic), nil
	default:
		return nil, fmt.Errorf("events: unsupported driver %q", cfg.Driver)
	}
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, []MovementEvent) error { return nil }
func (NopPublisher) Close() error                                  { return nil }

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string, batchTimeout time.Duration) *KafkaPublisher {
	if topic == "" {
		topic = DefaultMovementsTopic
	}
	if batchTimeout <= 0 {
		batchTimeout = DefaultKafkaBatchTimeout
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: batchTimeout,
		},
	}
}

// Publish keys each message by account so one account's movements stay
// ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, events []MovementEvent) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal movement event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(evt.Movement.AccountID.String()),
			Value: data,
			Time:  evt.OccurredAt,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write kafka messages: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultMovementsTopic
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, events []MovementEvent) error {
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal movement event: %w", err)
		}
		if err = p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
			return fmt.Errorf("publish movement event: %w", err)
		}
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
