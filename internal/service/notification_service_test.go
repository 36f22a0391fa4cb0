package service

import (
	"context"
	"errors"
	"testing"

	"subscription-mailer-be/internal/pkg/logger"
	"subscription-mailer-be/internal/pkg/mailer"
	"subscription-mailer-be/pkg/events"
	pktNats "subscription-mailer-be/pkg/nats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSubscriber struct {
	subject string
	durable string
	handler pktNats.EventHandler
	err     error
}

func (c *capturingSubscriber) Subscribe(ctx context.Context, subject, durable string, handler pktNats.EventHandler) error {
	c.subject, c.durable, c.handler = subject, durable, handler
	return c.err
}

type plainMailer struct {
	fakeMailer
	messages []mailer.Message
}

func (m *plainMailer) SendEmail(ctx context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func TestNotificationService_MailsCancellations(t *testing.T) {
	sub := &capturingSubscriber{}
	m := &plainMailer{}
	svc := NewNotificationService(sub, m, "ops@x.com", logger.NewNopLogger())

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, "subscriptions.>", sub.subject)
	require.NotNil(t, sub.handler)

	err := sub.handler(context.Background(), events.NewEvent(events.SubscriptionCancelled, map[string]interface{}{
		"email":           "a@x.com",
		"subscription_id": "sub_1",
		"plan_nickname":   "TradeCam",
	}))
	require.NoError(t, err)
	require.Len(t, m.messages, 1)
	assert.Equal(t, "ops@x.com", m.messages[0].To)
	assert.Contains(t, m.messages[0].Subject, "a@x.com")
	assert.Contains(t, m.messages[0].Text, "sub_1")

	err = sub.handler(context.Background(), events.NewEvent(events.SubscriptionEmailSent, map[string]interface{}{"email": "a@x.com"}))
	require.NoError(t, err)
	assert.Len(t, m.messages, 1)
}

func TestNotificationService_WithoutAdminOnlyAudits(t *testing.T) {
	sub := &capturingSubscriber{}
	m := &plainMailer{}
	svc := NewNotificationService(sub, m, "", logger.NewNopLogger())
	require.NoError(t, svc.Start(context.Background()))

	err := sub.handler(context.Background(), events.NewEvent(events.SubscriptionCancelled, map[string]interface{}{"email": "a@x.com"}))
	require.NoError(t, err)
	assert.Empty(t, m.messages)
}

func TestNotificationService_MailErrorIsReturned(t *testing.T) {
	sub := &capturingSubscriber{}
	m := &plainMailer{}
	m.err = errors.New("smtp down")
	svc := NewNotificationService(sub, m, "ops@x.com", logger.NewNopLogger())
	require.NoError(t, svc.Start(context.Background()))

	err := sub.handler(context.Background(), events.NewEvent(events.SubscriptionCancelled, map[string]interface{}{"email": "a@x.com"}))
	assert.Error(t, err)
}

func TestNotificationService_StartFailure(t *testing.T) {
	sub := &capturingSubscriber{err: errors.New("no stream")}
	svc := NewNotificationService(sub, &plainMailer{}, "", logger.NewNopLogger())
	assert.Error(t, svc.Start(context.Background()))
}
