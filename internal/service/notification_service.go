package service

import (
	"context"
	"fmt"

	"subscription-mailer-be/internal/pkg/logger"
	"subscription-mailer-be/internal/pkg/mailer"
	"subscription-mailer-be/pkg/events"
	pktNats "subscription-mailer-be/pkg/nats"
)

const (
	notificationModule  = "NotificationService"
	notificationSubject = "subscriptions.>"
	notificationDurable = "subscription-audit-worker"
)

// EventSubscriber is satisfied by *nats.Subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject string, durableName string, handler pktNats.EventHandler) error
}

// NotificationService audits every tracker event from the bus and mails
// cancellations to an operator address when one is configured.
type NotificationService struct {
	subscriber EventSubscriber
	mailer     mailer.IEmailService
	adminEmail string
	logger     logger.ILogger
}

func NewNotificationService(subscriber EventSubscriber, mailer mailer.IEmailService, adminEmail string, logger logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: subscriber,
		mailer:     mailer,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, notificationSubject, notificationDurable, s.handleEvent); err != nil {
		s.logger.Error(notificationModule, "Failed to start event subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info(notificationModule, "Listening to "+notificationSubject, nil)
	return nil
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	s.logger.Info(notificationModule, fmt.Sprintf("Event: %s", event.EventType()), map[string]interface{}{
		"type":        event.EventType(),
		"occurred_at": event.Timestamp(),
		"payload":     payload,
	})

	if event.EventType() != events.SubscriptionCancelled || s.adminEmail == "" {
		return nil
	}

	email, _ := payload["email"].(string)
	subscriptionId, _ := payload["subscription_id"].(string)
	plan, _ := payload["plan_nickname"].(string)

	// a returned error Naks the message, so the operator mail is retried
	return s.mailer.SendEmail(ctx, mailer.Message{
		To:      s.adminEmail,
		Subject: fmt.Sprintf("Subscription cancelled: %s", email),
		Text: fmt.Sprintf(
			"Subscription %s (%s) for %s is no longer live upstream and was marked cancelled.",
			subscriptionId, plan, email,
		),
	})
}
