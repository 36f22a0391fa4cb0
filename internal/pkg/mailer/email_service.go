// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"subscription-mailer-be/internal/pkg/logger"

	"github.com/cenkalti/backoff/v5"
	"gopkg.in/gomail.v2"
)

const mailerModule = "Mailer"

// DefaultRetryDelays is the wait before each retry of a rate-limited send.
var DefaultRetryDelays = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}

type IEmailService interface {
	SendEmail(ctx context.Context, msg Message) error
	SendSubscriptionEmail(ctx context.Context, email SubscriptionEmail) error
}

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type SubscriptionEmail struct {
	To           string
	ProductName  string
	DownloadLink string
	CustomerName string
}

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	SenderEmail string
	// Bcc receives a copy of every message when set.
	Bcc string
	// TestRecipient replaces every recipient when set.
	TestRecipient string
	MinInterval   time.Duration
	RetryDelays   []time.Duration
}

type emailService struct {
	sender Sender
	cfg    Config
	logger logger.ILogger

	mu       sync.Mutex
	lastSent time.Time
}

func NewEmailService(cfg Config, log logger.ILogger) IEmailService {
	return NewEmailServiceWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg, log)
}

func NewEmailServiceWithSender(sender Sender, cfg Config, log logger.ILogger) IEmailService {
	if cfg.RetryDelays == nil {
		cfg.RetryDelays = DefaultRetryDelays
	}
	if cfg.SenderEmail == "" {
		cfg.SenderEmail = cfg.Username
	}
	return &emailService{
		sender: sender,
		cfg:    cfg,
		logger: log,
	}
}

func (s *emailService) SendEmail(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mailer: empty recipient")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.SenderEmail)
	m.SetHeader("To", msg.To)
	if s.cfg.Bcc != "" {
		m.SetHeader("Bcc", s.cfg.Bcc)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := s.waitForRateLimit(ctx); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if err := s.sender.DialAndSend(m); err != nil {
			if !isRateLimitError(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(&scheduleBackOff{delays: s.cfg.RetryDelays}),
		backoff.WithMaxTries(uint(len(s.cfg.RetryDelays)+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn(mailerModule, "Rate limit hit, retrying", map[string]interface{}{
				"to":      msg.To,
				"attempt": attempt,
				"wait":    next.String(),
				"error":   err.Error(),
			})
		}),
	)
	if err != nil {
		s.logger.Error(mailerModule, "Failed to send email", map[string]interface{}{
			"to":       msg.To,
			"attempts": attempt,
			"error":    err.Error(),
		})
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}

	s.logger.Info(mailerModule, "Email sent", map[string]interface{}{"to": msg.To, "subject": msg.Subject})
	return nil
}

func (s *emailService) SendSubscriptionEmail(ctx context.Context, email SubscriptionEmail) error {
	customerName := email.CustomerName
	if customerName == "" {
		customerName = "Valued Customer"
	}
	recipient := email.To
	if s.cfg.TestRecipient != "" {
		recipient = s.cfg.TestRecipient
	}

	return s.SendEmail(ctx, Message{
		To:      recipient,
		Subject: fmt.Sprintf("Thank You for Your Subscription to %s!", email.ProductName),
		Text:    subscriptionText(email.ProductName, email.DownloadLink, customerName),
		HTML:    subscriptionHTML(email.ProductName, email.DownloadLink, customerName),
	})
}

// waitForRateLimit blocks until MinInterval has passed since the previous attempt.
func (s *emailService) waitForRateLimit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wait := s.cfg.MinInterval - time.Since(s.lastSent); wait > 0 && !s.lastSent.IsZero() {
		s.logger.Debug(mailerModule, "Rate limiting before next email", map[string]interface{}{"wait": wait.String()})
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	s.lastSent = time.Now()
	return nil
}

func isRateLimitError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Too many login attempts") ||
		strings.Contains(msg, "454") ||
		strings.Contains(strings.ToLower(msg), "rate limit")
}

// scheduleBackOff walks a fixed list of delays, then stops.
type scheduleBackOff struct {
	delays []time.Duration
	next   int
}

func (b *scheduleBackOff) NextBackOff() time.Duration {
	if b.next >= len(b.delays) {
		return backoff.Stop
	}
	d := b.delays[b.next]
	b.next++
	return d
}

func (b *scheduleBackOff) Reset() {
	b.next = 0
}
