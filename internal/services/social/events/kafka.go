// Package events publishes relationship transitions to an append-only log.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/followgraph/internal/platform/timeouts"
	"github.com/louisbranch/followgraph/internal/services/social/domain"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives relationship events when no topic is configured.
const DefaultTopic = "followgraph.relationships"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per transition, keyed by actor id so a
// user's transitions stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher builds a publisher for a comma separated broker list.
func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	addrs := splitBrokers(brokers)
	if len(addrs) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, topic: topic}, nil
}

// Topic returns the destination topic.
func (p *KafkaPublisher) Topic() string {
	if p == nil {
		return ""
	}
	return p.topic
}

// Publish writes event. The write is detached from ctx cancellation and
// bounded by the publish timeout.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.RelationshipEvent) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka publisher is not configured")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode relationship event: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.EventPublish)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.ActorID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}); err != nil {
		return fmt.Errorf("write %s to %s: %w", event.Type, p.topic, err)
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func splitBrokers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Noop discards events.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, domain.RelationshipEvent) error { return nil }

var (
	_ domain.EventPublisher = (*KafkaPublisher)(nil)
	_ domain.EventPublisher = Noop{}
)
