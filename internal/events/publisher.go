// Package events publishes reconciliation outcomes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// SnapshotReconciled is emitted after a snapshot document was written.
type SnapshotReconciled struct {
	RunID       string    `json:"runId"`
	Date        string    `json:"date"`
	PoolCount   int       `json:"poolCount"`
	Retained    int       `json:"retained"`
	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Publisher delivers events.
type Publisher interface {
	PublishReconciled(ctx context.Context, evt SnapshotReconciled) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishReconciled(context.Context, SnapshotReconciled) error { return nil }
func (Nop) Close() error                                               { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON events keyed by date to one topic.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Transport: &kafka.Transport{
			ClientID: "pooldesk",
		},
	}
	return newKafkaPublisher(writer, topic, logger), nil
}

func newKafkaPublisher(writer messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

func (p *KafkaPublisher) PublishReconciled(ctx context.Context, evt SnapshotReconciled) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.Date),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("snapshot.reconciled")},
			{Key: "run_id", Value: []byte(evt.RunID)},
		},
		Time: evt.LastUpdated,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish event failed",
			zap.String("topic", p.topic),
			zap.String("date", evt.Date),
			zap.Error(err))
		return fmt.Errorf("publish event: %w", err)
	}

	p.logger.Debug("event published", zap.String("topic", p.topic), zap.String("date", evt.Date))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
