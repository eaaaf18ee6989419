package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkravets/backoffice/internal/logging"
	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes facts to a Kafka topic consumed by the external
// audit-log service.
type KafkaSink struct {
	writer *kafka.Writer
	log    logging.Logger
}

// NewKafkaSink builds a sink writing to the given brokers and topic.
func NewKafkaSink(brokers []string, topic string, log logging.Logger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaSink{writer: writer, log: log}
}

func (s *KafkaSink) Emit(ctx context.Context, fact Fact) {
	payload, err := json.Marshal(fact)
	if err != nil {
		s.log.Error(ctx, "audit fact marshal failed", "action", fact.Action, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(fact.Action),
		Value: payload,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.log.Error(ctx, "audit fact publish failed", "action", fact.Action, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// LogSink writes facts to the structured log. Used when no Kafka brokers
// are configured, and in development.
type LogSink struct {
	log logging.Logger
}

func NewLogSink(log logging.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Emit(ctx context.Context, fact Fact) {
	s.log.Info(ctx, "audit",
		"action", fact.Action,
		"user_id", fact.UserID,
		"record_id", fact.RecordID,
		"ip", fact.IPAddress,
		"details", fact.Details,
	)
}
