package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/pkg/logger"
	"subscription-mailer-be/internal/source/csvsnapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snapshot []*entity.Observation
	err      error
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) FetchSnapshot(ctx context.Context) ([]*entity.Observation, error) {
	return s.snapshot, s.err
}

type recordingBus struct {
	mu        sync.Mutex
	published []*entity.Observation
	err       error
}

func (b *recordingBus) PublishObservations(ctx context.Context, observations []*entity.Observation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, observations...)
	return nil
}

func TestSnapshotPoller_PublishesWritesAndReconciles(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t)
	_, err := f.tracker.RecordSent(ctx, tradeCamObservation("sub_gone"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "stripe_subscriptions.csv")
	source := &fakeSource{snapshot: []*entity.Observation{tradeCamObservation("sub_1")}}
	bus := &recordingBus{}
	poller := NewSnapshotPoller(source, f.tracker, bus, nil, path, logger.NewNopLogger())

	result, err := poller.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fake", result.Source)
	assert.Equal(t, 1, result.Fetched)
	require.NotNil(t, result.Reconcile)
	assert.Equal(t, []entity.RecordKey{{Email: "a@x.com", SubscriptionId: "sub_gone"}}, result.Reconcile.Cancelled)

	assert.Len(t, bus.published, 1)

	written, err := csvsnapshot.ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, "sub_1", written[0].SubscriptionId)
}

func TestSnapshotPoller_FetchErrorDoesNotReconcile(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t)
	_, err := f.tracker.RecordSent(ctx, tradeCamObservation("sub_1"))
	require.NoError(t, err)

	bus := &recordingBus{}
	poller := NewSnapshotPoller(&fakeSource{err: errors.New("stripe unavailable")}, f.tracker, bus, nil, "", logger.NewNopLogger())

	_, err = poller.RunOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stripe unavailable")
	assert.Empty(t, bus.published)

	record, err := f.tracker.FindSubscription(ctx, "a@x.com", "sub_1")
	require.NoError(t, err)
	assert.False(t, record.IsCancelled)
}

func TestSnapshotPoller_EmptySnapshotIsRejected(t *testing.T) {
	f := newTrackerFixture(t)
	poller := NewSnapshotPoller(&fakeSource{}, f.tracker, &recordingBus{}, nil, "", logger.NewNopLogger())

	_, err := poller.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}
