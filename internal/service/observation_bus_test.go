package service

import (
	"context"
	"testing"
	"time"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservationBus_DeliversPublishedObservations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delivery, f, m := newDeliveryFixture(t)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	defer pubSub.Close()

	bus := NewObservationBus(pubSub, "test.observations", delivery, logger.NewNopLogger())
	require.NoError(t, bus.Consume(ctx))

	stale := tradeCamObservation("sub_2")
	stale.Status = entity.SubscriptionStatusCanceled

	err := bus.PublishObservations(ctx, []*entity.Observation{
		tradeCamObservation("sub_1"),
		tradeCamObservation("sub_1"),
		stale,
		nil,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		records, err := f.tracker.GetAllSubscriptions(ctx)
		return err == nil && len(records) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// give the trailing duplicate time to be consumed
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, m.count())
}

func TestObservationBus_PublishNothing(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	defer pubSub.Close()

	bus := NewObservationBus(pubSub, "test.observations", nil, logger.NewNopLogger())
	assert.NoError(t, bus.PublishObservations(context.Background(), nil))
}
