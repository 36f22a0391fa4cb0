package service

import (
	"context"
	"encoding/json"
	"fmt"

	"subscription-mailer-be/internal/dto"
	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/mapper"
	"subscription-mailer-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const busModule = "ObservationBus"

// ObservationPublisher is what pollers need from the bus.
type ObservationPublisher interface {
	PublishObservations(ctx context.Context, observations []*entity.Observation) error
}

// IObservationBus fans observations from every source into one consumer, so
// deliveries run one at a time in arrival order.
type IObservationBus interface {
	ObservationPublisher
	Consume(ctx context.Context) error
}

type observationBus struct {
	pubSub   *gochannel.GoChannel
	topic    string
	delivery IDeliveryService
	mapper   *mapper.SubscriptionRecordMapper
	logger   logger.ILogger
}

func NewObservationBus(pubSub *gochannel.GoChannel, topic string, delivery IDeliveryService, logger logger.ILogger) IObservationBus {
	return &observationBus{
		pubSub:   pubSub,
		topic:    topic,
		delivery: delivery,
		mapper:   mapper.NewSubscriptionRecordMapper(),
		logger:   logger,
	}
}

func (b *observationBus) PublishObservations(ctx context.Context, observations []*entity.Observation) error {
	msgs := make([]*message.Message, 0, len(observations))
	for _, o := range observations {
		if o == nil {
			continue
		}
		payload, err := json.Marshal(b.mapper.ToObservationRequest(o))
		if err != nil {
			return fmt.Errorf("encode observation %s: %w", o.SubscriptionId, err)
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.SetContext(ctx)
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := b.pubSub.Publish(b.topic, msgs...); err != nil {
		return fmt.Errorf("publish observations: %w", err)
	}
	return nil
}

func (b *observationBus) Consume(ctx context.Context) error {
	messages, err := b.pubSub.Subscribe(ctx, b.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			b.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks. Failed observations are retried by the next
// poll, not by redelivery.
func (b *observationBus) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.ObservationRequest
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		b.logger.Error(busModule, "Failed to decode observation", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	outcome, err := b.delivery.Process(ctx, b.mapper.ObservationFromRequest(&payload))
	if err != nil {
		b.logger.Error(busModule, "Failed to process observation", map[string]interface{}{
			"email":           payload.Email,
			"subscription_id": payload.SubscriptionId,
			"error":           err.Error(),
		})
		return
	}
	if outcome.Action == DeliverySent {
		b.logger.Info(busModule, "Confirmation email sent and recorded", map[string]interface{}{
			"email":           payload.Email,
			"subscription_id": payload.SubscriptionId,
		})
	}
}
