// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"intake/internal/platform/config"
	audit "intake/pkg/platform/audit"
)

// Producer is an audit.Sink writing one record per event, keyed by subject so
// the events of one request stay ordered within a partition.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to the configured brokers and makes sure the audit
// topic exists.
func NewProducer(ctx context.Context, cfg config.KafkaConfig) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.AuditTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	if err := EnsureTopic(ctx, client, cfg.AuditTopic, cfg.Partitions); err != nil {
		client.Close()
		return nil, err
	}
	return &Producer{client: client, topic: cfg.AuditTopic}, nil
}

// EnsureTopic creates topic with the broker's default replication factor. An
// existing topic is left as is.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32) error {
	if partitions <= 0 {
		partitions = 1
	}
	resp, err := kadm.NewClient(client).CreateTopics(ctx, partitions, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// Publish implements audit.Sink. It waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, event audit.Event) error {
	rec, err := NewRecord(p.topic, event)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}

// Message is the JSON body of an audit record.
type Message struct {
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"`
	Action    string    `json:"action"`
	ServiceID string    `json:"service_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// NewRecord encodes event as a record on topic.
func NewRecord(topic string, event audit.Event) (*kgo.Record, error) {
	body, err := json.Marshal(Message{
		Category:  string(event.Category),
		Timestamp: event.Timestamp.UTC(),
		Subject:   event.Subject,
		Action:    event.Action,
		ServiceID: event.ServiceID,
		Status:    event.Status,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal audit event: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(event.Subject),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
	}, nil
}
