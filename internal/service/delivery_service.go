// FILE: internal/service/delivery_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/pkg/logger"
	"subscription-mailer-be/internal/pkg/mailer"
)

const deliveryModule = "Delivery"

type DeliveryAction string

const (
	DeliverySent              DeliveryAction = "sent"
	DeliverySkippedStatus     DeliveryAction = "skipped_status"
	DeliverySkippedDuplicate  DeliveryAction = "skipped_duplicate"
	DeliverySkippedIncomplete DeliveryAction = "skipped_incomplete"
)

type DeliveryOutcome struct {
	Action       DeliveryAction
	Record       *entity.SubscriptionRecord
	DownloadLink string
}

// LinkResolver is satisfied by *productlink.Mapper.
type LinkResolver interface {
	Resolve(planNickname string) string
}

type IDeliveryService interface {
	// Process sends the confirmation email for a live subscription that has
	// none yet and records it. A mail failure records nothing.
	Process(ctx context.Context, observation *entity.Observation) (*DeliveryOutcome, error)
}

type deliveryService struct {
	tracker ITrackerService
	mailer  mailer.IEmailService
	links   LinkResolver
	logger  logger.ILogger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewDeliveryService(tracker ITrackerService, mailer mailer.IEmailService, links LinkResolver, logger logger.ILogger) IDeliveryService {
	return &deliveryService{
		tracker:  tracker,
		mailer:   mailer,
		links:    links,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

func (s *deliveryService) Process(ctx context.Context, observation *entity.Observation) (*DeliveryOutcome, error) {
	if observation == nil {
		return &DeliveryOutcome{Action: DeliverySkippedIncomplete}, nil
	}
	obs := *observation
	obs.Email = strings.ToLower(strings.TrimSpace(obs.Email))
	obs.SubscriptionId = strings.TrimSpace(obs.SubscriptionId)
	obs.Status = entity.SubscriptionStatus(strings.TrimSpace(string(obs.Status)))
	if strings.TrimSpace(obs.PlanNickname) == "" {
		obs.PlanNickname = "Your Subscription"
	}

	key := obs.Key()
	if !key.IsComplete() {
		return &DeliveryOutcome{Action: DeliverySkippedIncomplete}, nil
	}
	if !obs.Status.IsLive() {
		s.logger.Debug(deliveryModule, "Skipping subscription that is not live", map[string]interface{}{
			"email":  obs.Email,
			"status": string(obs.Status),
		})
		return &DeliveryOutcome{Action: DeliverySkippedStatus}, nil
	}

	if !s.claim(key.String()) {
		return &DeliveryOutcome{Action: DeliverySkippedDuplicate}, nil
	}
	defer s.unclaim(key.String())

	// unlocked pre-check; SendOnce repeats it under the lock
	send, err := s.tracker.ShouldSend(ctx, obs.Email, obs.SubscriptionId)
	if err != nil {
		return nil, err
	}
	if !send {
		return &DeliveryOutcome{Action: DeliverySkippedDuplicate}, nil
	}

	link := s.links.Resolve(obs.PlanNickname)
	record, sent, err := s.tracker.SendOnce(ctx, &obs, func(ctx context.Context) error {
		s.logger.Info(deliveryModule, "New subscription detected", map[string]interface{}{
			"email":           obs.Email,
			"subscription_id": obs.SubscriptionId,
			"plan":            obs.PlanNickname,
			"status":          string(obs.Status),
			"source":          string(obs.Source),
		})
		err := s.mailer.SendSubscriptionEmail(ctx, mailer.SubscriptionEmail{
			To:           obs.Email,
			ProductName:  obs.PlanNickname,
			DownloadLink: link,
			CustomerName: strings.SplitN(obs.Email, "@", 2)[0],
		})
		if err != nil {
			return fmt.Errorf("send confirmation to %s: %w", obs.Email, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sent {
		return &DeliveryOutcome{Action: DeliverySkippedDuplicate, Record: record}, nil
	}

	return &DeliveryOutcome{Action: DeliverySent, Record: record, DownloadLink: link}, nil
}

func (s *deliveryService) claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *deliveryService) unclaim(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}
