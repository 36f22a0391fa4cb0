package notify

import (
	"context"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/pkg/logger"
	pkgEvents "subscription-mailer-be/pkg/events"
)

// Publisher announces send-log changes to other services. Failures are logged,
// never returned: the send log stays the source of truth.
type Publisher interface {
	PublishEmailSent(ctx context.Context, record *entity.SubscriptionRecord)
	PublishSubscriptionCancelled(ctx context.Context, record *entity.SubscriptionRecord)
	PublishSnapshotFetched(ctx context.Context, source string, size int)
}

// EventPublisher is satisfied by *nats.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// NatsPublisher implements Publisher on top of the JetStream publisher.
// A nil EventPublisher turns every method into a no-op.
type NatsPublisher struct {
	publisher EventPublisher
	logger    logger.ILogger
}

func NewNatsPublisher(publisher EventPublisher, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

func (p *NatsPublisher) PublishEmailSent(ctx context.Context, record *entity.SubscriptionRecord) {
	p.publish(ctx, pkgEvents.NewEvent(pkgEvents.SubscriptionEmailSent, map[string]interface{}{
		"email":           record.Email,
		"subscription_id": record.SubscriptionId,
		"customer_id":     record.CustomerId,
		"plan_nickname":   record.PlanNickname,
		"plan_amount":     record.PlanAmount,
		"currency":        record.Currency,
		"duration":        record.Duration,
		"source":          string(record.Source),
		"email_sent_at":   record.EmailSentAt,
	}))
}

func (p *NatsPublisher) PublishSubscriptionCancelled(ctx context.Context, record *entity.SubscriptionRecord) {
	p.publish(ctx, pkgEvents.NewEvent(pkgEvents.SubscriptionCancelled, map[string]interface{}{
		"email":           record.Email,
		"subscription_id": record.SubscriptionId,
		"customer_id":     record.CustomerId,
		"plan_nickname":   record.PlanNickname,
		"entity_type":     "subscription_record",
		"entity_id":       record.Key().String(),
	}))
}

func (p *NatsPublisher) PublishSnapshotFetched(ctx context.Context, source string, size int) {
	p.publish(ctx, pkgEvents.NewEvent(pkgEvents.SnapshotFetched, map[string]interface{}{
		"source": source,
		"size":   size,
	}))
}

func (p *NatsPublisher) publish(ctx context.Context, evt pkgEvents.BaseEvent) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, evt); err != nil {
		p.logger.Error("NOTIFY", "Failed to publish "+evt.Type+" event", map[string]interface{}{"error": err.Error()})
	}
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishEmailSent(context.Context, *entity.SubscriptionRecord)             {}
func (NoopPublisher) PublishSubscriptionCancelled(context.Context, *entity.SubscriptionRecord) {}
func (NoopPublisher) PublishSnapshotFetched(context.Context, string, int)                      {}
