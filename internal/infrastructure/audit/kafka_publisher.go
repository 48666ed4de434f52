// Package audit publishes admission operability events. The Kafka publisher
// feeds downstream compliance pipelines; the log publisher serves deployments
// without a broker.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/logger"
)

var _ service.AuditPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes audit events to a Kafka topic. Events are keyed by
// client key so a consumer sees each client's events in order.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger logger.Logger
}

// KafkaPublisherConfig configures the publisher.
type KafkaPublisherConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	BatchTimeout time.Duration
}

// NewKafkaPublisher creates a publisher against the given brokers.
func NewKafkaPublisher(cfg KafkaPublisherConfig, log logger.Logger) *KafkaPublisher {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}

	auditLog := log.WithComponent("kafka_audit")
	writer.Completion = func(messages []kafka.Message, err error) {
		if err != nil {
			auditLog.Warn(context.Background(), "audit delivery failed",
				logger.Int("messages", len(messages)),
				logger.Error(err),
			)
		}
	}

	return &KafkaPublisher{
		writer: writer,
		logger: auditLog,
	}
}

// Publish sends one audit event. Publishing is asynchronous; a broker outage
// is logged by the writer's completion callback rather than failing the
// admission path.
func (p *KafkaPublisher) Publish(ctx context.Context, event service.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal audit event", err,
			logger.String("event_type", event.Type),
		)
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ClientKey),
		Value: payload,
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
