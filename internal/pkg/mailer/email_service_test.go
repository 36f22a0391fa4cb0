package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"subscription-mailer-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	mu       sync.Mutex
	failures []error
	sent     []*gomail.Message
	calls    []time.Time
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, time.Now())
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func fastConfig() Config {
	return Config{
		SenderEmail: "noreply@example.com",
		RetryDelays: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
	}
}

func TestSendEmail_RetriesRateLimitErrors(t *testing.T) {
	sender := &fakeSender{failures: []error{
		errors.New("454 4.7.0 Too many login attempts, please try again later"),
		errors.New("421 rate limit exceeded"),
	}}
	svc := NewEmailServiceWithSender(sender, fastConfig(), logger.NewNopLogger())

	err := svc.SendEmail(context.Background(), Message{To: "a@x.com", Subject: "hi", Text: "body"})
	require.NoError(t, err)
	assert.Len(t, sender.calls, 3)
	assert.Len(t, sender.sent, 1)
}

func TestSendEmail_GivesUpAfterSchedule(t *testing.T) {
	limited := errors.New("454 Too many login attempts")
	sender := &fakeSender{failures: []error{limited, limited, limited, limited, limited}}
	svc := NewEmailServiceWithSender(sender, fastConfig(), logger.NewNopLogger())

	err := svc.SendEmail(context.Background(), Message{To: "a@x.com", Subject: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, limited)
	assert.Len(t, sender.calls, 4)
}

func TestSendEmail_DoesNotRetryOtherErrors(t *testing.T) {
	authErr := errors.New("535 authentication failed")
	sender := &fakeSender{failures: []error{authErr}}
	svc := NewEmailServiceWithSender(sender, fastConfig(), logger.NewNopLogger())

	err := svc.SendEmail(context.Background(), Message{To: "a@x.com", Subject: "hi"})
	assert.ErrorIs(t, err, authErr)
	assert.Len(t, sender.calls, 1)
}

func TestSendEmail_RejectsEmptyRecipient(t *testing.T) {
	sender := &fakeSender{}
	svc := NewEmailServiceWithSender(sender, fastConfig(), logger.NewNopLogger())

	assert.Error(t, svc.SendEmail(context.Background(), Message{To: " "}))
	assert.Empty(t, sender.calls)
}

func TestSendEmail_RespectsMinInterval(t *testing.T) {
	sender := &fakeSender{}
	cfg := fastConfig()
	cfg.MinInterval = 40 * time.Millisecond
	svc := NewEmailServiceWithSender(sender, cfg, logger.NewNopLogger())

	ctx := context.Background()
	require.NoError(t, svc.SendEmail(ctx, Message{To: "a@x.com"}))
	require.NoError(t, svc.SendEmail(ctx, Message{To: "b@x.com"}))

	require.Len(t, sender.calls, 2)
	assert.GreaterOrEqual(t, sender.calls[1].Sub(sender.calls[0]), 40*time.Millisecond)
}

func TestSendEmail_CancelledWhileRateLimited(t *testing.T) {
	sender := &fakeSender{}
	cfg := fastConfig()
	cfg.MinInterval = time.Hour
	svc := NewEmailServiceWithSender(sender, cfg, logger.NewNopLogger())

	require.NoError(t, svc.SendEmail(context.Background(), Message{To: "a@x.com"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := svc.SendEmail(ctx, Message{To: "b@x.com"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, sender.calls, 1)
}

func TestSendSubscriptionEmail_Headers(t *testing.T) {
	sender := &fakeSender{}
	cfg := fastConfig()
	cfg.Bcc = "audit@example.com"
	svc := NewEmailServiceWithSender(sender, cfg, logger.NewNopLogger())

	err := svc.SendSubscriptionEmail(context.Background(), SubscriptionEmail{
		To:           "a@x.com",
		ProductName:  "TradeCam",
		DownloadLink: "https://app.example.com/download/tradecam",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, []string{"a@x.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"audit@example.com"}, m.GetHeader("Bcc"))
	assert.Equal(t, []string{"Thank You for Your Subscription to TradeCam!"}, m.GetHeader("Subject"))
}

func TestSendSubscriptionEmail_TestRecipientOverride(t *testing.T) {
	sender := &fakeSender{}
	cfg := fastConfig()
	cfg.TestRecipient = "qa@example.com"
	svc := NewEmailServiceWithSender(sender, cfg, logger.NewNopLogger())

	require.NoError(t, svc.SendSubscriptionEmail(context.Background(), SubscriptionEmail{To: "customer@x.com", ProductName: "Pro"}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"qa@example.com"}, sender.sent[0].GetHeader("To"))
}

func TestSubscriptionTemplates(t *testing.T) {
	text := subscriptionText("TradeCam", "https://x/download", "alice")
	assert.Contains(t, text, "Dear alice,")
	assert.Contains(t, text, "https://x/download")

	body := subscriptionHTML("<Pro>", "https://x/download", "alice")
	assert.Contains(t, body, "&lt;Pro&gt;")
	assert.NotContains(t, body, "<Pro>")
}
