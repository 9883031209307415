package kafka

import (
	"context"
	"fmt"
	"roombook/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Publisher emits booking events. Implementations must be safe for
// concurrent use by request handlers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type producer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewProducer builds a kafka-go backed Publisher. Returns a no-op
// publisher when no brokers are configured so callers never branch on
// eventing being enabled.
func NewProducer(brokers []string, topic string, log *logger.Logger) (Publisher, error) {
	if len(brokers) == 0 {
		log.Info("Kafka brokers not configured, booking events disabled")
		return nopPublisher{}, nil
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // key by room for per-room ordering
		RequiredAcks: kafka.RequireAll,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error(fmt.Sprintf("kafka: "+msg, args...))
		}),
	}

	log.Info("Kafka producer initialized", "topic", topic, "brokers", brokers)
	return &producer{writer: writer, log: log}, nil
}

func (p *producer) Publish(ctx context.Context, event Event) error {
	value, err := event.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RoomID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.ID)},
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *producer) Close() error {
	return p.writer.Close()
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }
