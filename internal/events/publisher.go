// Package events ships committed timetable events to Kafka for downstream
// consumers such as an external statistics collector.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/observability"
)

// DefaultTopic receives every timetable event unless configured otherwise.
const DefaultTopic = "weekly.timetable-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// KafkaPublisher implements timetable.EventPublisher.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewKafkaPublisher wraps writer. An empty topic selects DefaultTopic.
func NewKafkaPublisher(writer messageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{writer: writer, topic: topic, timeout: 5 * time.Second, logger: logger}
}

// Publish writes events keyed by timetable id so a timetable's events stay
// ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, evts ...timetable.Event) error {
	if len(evts) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(evts))
	for _, evt := range evts {
		value, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", evt.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(evt.TimetableID),
			Value: value,
			Time:  evt.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(evt.Type)},
				{Key: "user_id", Value: []byte(evt.UserID)},
			},
		})
	}

	// The request context may already be done once the response is written.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err := p.writer.WriteMessages(writeCtx, p.topic, msgs...)
	for _, evt := range evts {
		observability.RecordEventPublished(string(evt.Type), err)
	}
	if err != nil {
		p.logger.Warn("publish events failed", "topic", p.topic, "count", len(evts), "error", err)
		return fmt.Errorf("publish %d events: %w", len(evts), err)
	}
	p.logger.Debug("published events", "topic", p.topic, "count", len(evts))
	return nil
}

// Close releases the underlying writer when it supports closing.
func (p *KafkaPublisher) Close() error {
	if c, ok := p.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
