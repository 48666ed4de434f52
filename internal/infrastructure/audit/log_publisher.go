package audit

import (
	"context"

	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/logger"
)

var _ service.AuditPublisher = (*LogPublisher)(nil)

// LogPublisher emits audit events to the structured log. Used when Kafka is
// disabled so events still land somewhere greppable.
type LogPublisher struct {
	logger logger.Logger
}

// NewLogPublisher creates a log-backed publisher.
func NewLogPublisher(log logger.Logger) *LogPublisher {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &LogPublisher{logger: log.WithComponent("audit")}
}

// Publish logs the event at info level.
func (p *LogPublisher) Publish(ctx context.Context, event service.AuditEvent) error {
	p.logger.Info(ctx, "audit event",
		logger.String("event_type", event.Type),
		logger.String("endpoint", event.Endpoint),
		logger.String("client_key", event.ClientKey),
		logger.Time("event_time", event.Timestamp),
		logger.Any("fields", event.Fields),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}
