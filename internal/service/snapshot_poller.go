package service

import (
	"context"
	"fmt"
	"time"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/pkg/logger"
	"subscription-mailer-be/internal/source/csvsnapshot"
	"subscription-mailer-be/pkg/notify"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const pollerModule = "SnapshotPoller"

// SnapshotSource is satisfied by *stripe.Fetcher.
type SnapshotSource interface {
	Name() string
	FetchSnapshot(ctx context.Context) ([]*entity.Observation, error)
}

type PollResult struct {
	Source    string
	Fetched   int
	Reconcile *entity.ReconcileResult
}

type ISnapshotPoller interface {
	RunOnce(ctx context.Context) (*PollResult, error)
	Run(ctx context.Context, interval time.Duration)
}

type snapshotPoller struct {
	source       SnapshotSource
	tracker      ITrackerService
	bus          ObservationPublisher
	publisher    notify.Publisher
	snapshotPath string
	logger       logger.ILogger
}

// NewSnapshotPoller wires one upstream source to delivery and reconciliation.
// snapshotPath may be empty to skip writing the CSV snapshot.
func NewSnapshotPoller(
	source SnapshotSource,
	tracker ITrackerService,
	bus ObservationPublisher,
	publisher notify.Publisher,
	snapshotPath string,
	logger logger.ILogger,
) ISnapshotPoller {
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}
	return &snapshotPoller{
		source:       source,
		tracker:      tracker,
		bus:          bus,
		publisher:    publisher,
		snapshotPath: snapshotPath,
		logger:       logger,
	}
}

// RunOnce fetches one snapshot, hands every observation to the bus and then
// reconciles. A failed fetch does nothing else: reconciling against a
// partial snapshot would cancel live subscriptions.
func (p *snapshotPoller) RunOnce(ctx context.Context) (result *PollResult, err error) {
	ctx, span := otel.Tracer(pollerModule).Start(ctx, "SnapshotPoller.RunOnce")
	span.SetAttributes(attribute.String("snapshot.source", p.source.Name()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	snapshot, err := p.source.FetchSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s snapshot: %w", p.source.Name(), err)
	}
	span.SetAttributes(attribute.Int("snapshot.size", len(snapshot)))

	result = &PollResult{Source: p.source.Name(), Fetched: len(snapshot)}
	p.logger.Info(pollerModule, "Snapshot fetched", map[string]interface{}{
		"source": result.Source,
		"size":   result.Fetched,
	})

	if p.snapshotPath != "" {
		if err := csvsnapshot.WriteSnapshot(p.snapshotPath, snapshot); err != nil {
			p.logger.Warn(pollerModule, "Failed to write snapshot file", map[string]interface{}{
				"path":  p.snapshotPath,
				"error": err.Error(),
			})
		}
	}
	p.publisher.PublishSnapshotFetched(ctx, result.Source, result.Fetched)

	if err := p.bus.PublishObservations(ctx, snapshot); err != nil {
		return result, err
	}

	reconciled, err := p.tracker.Reconcile(ctx, snapshot)
	result.Reconcile = reconciled
	if err != nil {
		return result, err
	}
	return result, nil
}

func (p *snapshotPoller) Run(ctx context.Context, interval time.Duration) {
	p.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *snapshotPoller) tick(ctx context.Context) {
	result, err := p.RunOnce(ctx)
	if err != nil {
		p.logger.Error(pollerModule, "Poll failed", map[string]interface{}{
			"source": p.source.Name(),
			"error":  err.Error(),
		})
		return
	}
	if result.Reconcile != nil && len(result.Reconcile.Cancelled) > 0 {
		p.logger.Info(pollerModule, "Cancellations recorded", map[string]interface{}{
			"count": len(result.Reconcile.Cancelled),
		})
	}
}
