// FILE: internal/service/tracker_service.go
// Send-log bookkeeping: the dedup gate, the append path and the cancellation sweep.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/pkg/distlock"
	"subscription-mailer-be/internal/pkg/logger"
	"subscription-mailer-be/internal/repository/contract"
	"subscription-mailer-be/pkg/notify"

	"github.com/cenkalti/backoff/v5"
)

const trackerModule = "Tracker"

type ITrackerService interface {
	// ShouldSend is true iff no record exists for the exact pair.
	ShouldSend(ctx context.Context, email, subscriptionId string) (bool, error)
	// RecordSent stores the proof of delivery. An existing pair is returned unchanged.
	RecordSent(ctx context.Context, observation *entity.Observation) (*entity.SubscriptionRecord, error)
	// SendOnce holds the log lock across the dedup check, send and append.
	// send runs only when the pair has no record; sent reports whether it ran.
	SendOnce(ctx context.Context, observation *entity.Observation, send func(ctx context.Context) error) (record *entity.SubscriptionRecord, sent bool, err error)
	// Reconcile flags records whose subscription is missing from, or cancelled in, the snapshot.
	Reconcile(ctx context.Context, snapshot []*entity.Observation) (*entity.ReconcileResult, error)
	FindSubscription(ctx context.Context, email, subscriptionId string) (*entity.SubscriptionRecord, error)
	FindSubscriptionsByEmail(ctx context.Context, email string) ([]*entity.SubscriptionRecord, error)
	GetAllSubscriptions(ctx context.Context) ([]*entity.SubscriptionRecord, error)
	GetStatistics(ctx context.Context) (*entity.SubscriptionStats, error)
	ClearAllRecords(ctx context.Context) error
}

type TrackerOption func(*trackerService)

// WithDistributedLock serializes writers across processes. RecordSent, SendOnce and
// ClearAllRecords poll the lock for up to wait; Reconcile tries once.
func WithDistributedLock(lock distlock.DistLock, wait time.Duration) TrackerOption {
	return func(s *trackerService) {
		s.dlock = lock
		s.lockWait = wait
	}
}

func WithPublisher(publisher notify.Publisher) TrackerOption {
	return func(s *trackerService) {
		s.publisher = publisher
	}
}

func WithClock(now func() time.Time) TrackerOption {
	return func(s *trackerService) {
		s.now = now
	}
}

type trackerService struct {
	repo      contract.SubscriptionRecordRepository
	exporter  contract.SendLogExporter
	publisher notify.Publisher
	logger    logger.ILogger
	now       func() time.Time

	// mu serializes check-then-append and sweeps inside this process
	mu        sync.Mutex
	dlock     distlock.DistLock
	lockWait  time.Duration
	lockRetry time.Duration
}

func NewTrackerService(
	repo contract.SubscriptionRecordRepository,
	exporter contract.SendLogExporter,
	logger logger.ILogger,
	opts ...TrackerOption,
) ITrackerService {
	s := &trackerService{
		repo:      repo,
		exporter:  exporter,
		publisher: notify.NoopPublisher{},
		logger:    logger,
		now:       time.Now,
		lockWait:  10 * time.Second,
		lockRetry: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errLockBusy = errors.New("lock busy")

// acquire takes the local mutex and, when configured, the distributed lock.
// The returned func releases both.
func (s *trackerService) acquire(ctx context.Context, wait bool) (func(), error) {
	s.mu.Lock()
	if s.dlock == nil {
		return s.mu.Unlock, nil
	}

	try := func() (struct{}, error) {
		ok, err := s.dlock.Acquire(ctx)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !ok {
			return struct{}{}, errLockBusy
		}
		return struct{}{}, nil
	}

	var err error
	if wait {
		_, err = backoff.Retry(ctx, try,
			backoff.WithBackOff(backoff.NewConstantBackOff(s.lockRetry)),
			backoff.WithMaxElapsedTime(s.lockWait),
		)
	} else {
		_, err = try()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
	}

	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, errLockBusy) {
			if wait {
				return nil, ErrLockTimeout
			}
			return nil, ErrSweepInProgress
		}
		return nil, fmt.Errorf("acquire subscription log lock: %w", err)
	}

	return func() {
		// release on a fresh context so a cancelled caller still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.dlock.Release(releaseCtx); err != nil {
			s.logger.Warn(trackerModule, "Failed to release distributed lock", map[string]interface{}{"error": err.Error()})
		}
		s.mu.Unlock()
	}, nil
}

func (s *trackerService) ShouldSend(ctx context.Context, email, subscriptionId string) (bool, error) {
	key := entity.RecordKey{Email: email, SubscriptionId: subscriptionId}
	if !key.IsComplete() {
		return false, ErrInvalidObservation
	}

	existing, err := s.repo.FindOne(ctx, email, subscriptionId)
	if err != nil {
		return false, storageError("find", err)
	}
	if existing != nil {
		s.logger.Debug(trackerModule, "Subscription already has a confirmation email", map[string]interface{}{
			"email":           email,
			"subscription_id": subscriptionId,
			"email_sent_at":   existing.EmailSentAt,
		})
		return false, nil
	}
	return true, nil
}

func (s *trackerService) RecordSent(ctx context.Context, observation *entity.Observation) (*entity.SubscriptionRecord, error) {
	if observation == nil || !observation.Key().IsComplete() {
		return nil, ErrInvalidObservation
	}

	release, err := s.acquire(ctx, true)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.repo.FindOne(ctx, observation.Email, observation.SubscriptionId)
	if err != nil {
		return nil, storageError("find", err)
	}
	if existing != nil {
		s.logger.Warn(trackerModule, "Record already exists, keeping the original", map[string]interface{}{
			"email":           observation.Email,
			"subscription_id": observation.SubscriptionId,
		})
		return existing, nil
	}

	return s.appendRecord(ctx, observation)
}

func (s *trackerService) SendOnce(ctx context.Context, observation *entity.Observation, send func(ctx context.Context) error) (*entity.SubscriptionRecord, bool, error) {
	if observation == nil || !observation.Key().IsComplete() {
		return nil, false, ErrInvalidObservation
	}

	release, err := s.acquire(ctx, true)
	if err != nil {
		return nil, false, err
	}
	defer release()

	existing, err := s.repo.FindOne(ctx, observation.Email, observation.SubscriptionId)
	if err != nil {
		return nil, false, storageError("find", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	if err := send(ctx); err != nil {
		return nil, false, err
	}

	record, err := s.appendRecord(ctx, observation)
	if err != nil {
		// the email went out; without a record the next pass would send it again
		s.logger.Error(trackerModule, "Email sent but record failed", map[string]interface{}{
			"email":           observation.Email,
			"subscription_id": observation.SubscriptionId,
			"error":           err.Error(),
		})
		return nil, true, err
	}
	return record, true, nil
}

// appendRecord stores a new record and its export row. Callers hold the lock
// and have checked that the pair is unknown.
func (s *trackerService) appendRecord(ctx context.Context, observation *entity.Observation) (*entity.SubscriptionRecord, error) {
	record := s.newRecord(observation)
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, contract.ErrRecordExists) {
			// written by another process between our read and write
			existing, findErr := s.repo.FindOne(ctx, observation.Email, observation.SubscriptionId)
			if findErr != nil {
				return nil, storageError("find", findErr)
			}
			s.logger.Warn(trackerModule, "Record appeared concurrently, keeping the original", map[string]interface{}{
				"email":           observation.Email,
				"subscription_id": observation.SubscriptionId,
			})
			return existing, nil
		}
		return nil, storageError("append", err)
	}

	// The CSV export is a reporting copy; the record above is what dedup reads.
	if err := s.exporter.Append(ctx, record); err != nil {
		s.logger.Error(trackerModule, "Failed to append send log export row", map[string]interface{}{
			"error":           err.Error(),
			"subscription_id": record.SubscriptionId,
		})
	}

	s.publisher.PublishEmailSent(ctx, record)
	s.logger.Info(trackerModule, "Created subscription record", map[string]interface{}{
		"email":           record.Email,
		"subscription_id": record.SubscriptionId,
		"plan":            record.PlanNickname,
		"duration":        record.Duration,
	})
	return record, nil
}

func (s *trackerService) newRecord(o *entity.Observation) *entity.SubscriptionRecord {
	now := s.now().UTC()
	source := o.Source
	if source == "" {
		source = entity.SourceStripe
	}
	startDate := o.SubscriptionStartDate
	if startDate == "" {
		startDate = o.CurrentPeriodStart
	}
	return &entity.SubscriptionRecord{
		Source:                source,
		Email:                 o.Email,
		CustomerId:            o.CustomerId,
		SubscriptionId:        o.SubscriptionId,
		Status:                o.Status,
		SubscriptionStartDate: startDate,
		CurrentPeriodStart:    o.CurrentPeriodStart,
		CurrentPeriodEnd:      o.CurrentPeriodEnd,
		PlanId:                o.PlanId,
		PlanAmount:            o.PlanAmount,
		Currency:              o.Currency,
		PlanNickname:          o.PlanNickname,
		Duration:              CalculateDuration(o.CurrentPeriodStart, o.CurrentPeriodEnd),
		EmailSentAt:           now,
		CreatedAt:             now,
	}
}

func (s *trackerService) Reconcile(ctx context.Context, snapshot []*entity.Observation) (*entity.ReconcileResult, error) {
	live, usable := liveSubscriptionIds(snapshot)
	if usable == 0 {
		return nil, ErrEmptySnapshot
	}

	release, err := s.acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &entity.ReconcileResult{SnapshotSize: len(snapshot)}

	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, storageError("list", err)
	}

	for _, record := range records {
		if record.IsCancelled {
			result.AlreadyCancelled++
			continue
		}
		result.Checked++

		if live[record.SubscriptionId] {
			continue
		}

		if err := s.repo.MarkCancelled(ctx, record.Email, record.SubscriptionId); err != nil {
			if errors.Is(err, contract.ErrRecordNotFound) {
				continue
			}
			// flags already flipped stay flipped; a rerun picks up the rest
			return result, storageError("update flag", err)
		}
		record.IsCancelled = true
		result.Cancelled = append(result.Cancelled, record.Key())
		s.publisher.PublishSubscriptionCancelled(ctx, record)
		s.logger.Info(trackerModule, "Marked subscription cancelled", map[string]interface{}{
			"email":           record.Email,
			"subscription_id": record.SubscriptionId,
		})
	}

	s.logger.Info(trackerModule, "Reconciliation sweep finished", map[string]interface{}{
		"snapshot_size":     result.SnapshotSize,
		"checked":           result.Checked,
		"cancelled":         len(result.Cancelled),
		"already_cancelled": result.AlreadyCancelled,
	})
	return result, nil
}

// liveSubscriptionIds returns the ids present in the snapshot with a
// non-cancelled status, plus the number of entries that carried an id.
// An id listed twice stays live if any entry is live.
func liveSubscriptionIds(snapshot []*entity.Observation) (map[string]bool, int) {
	live := make(map[string]bool, len(snapshot))
	usable := 0
	for _, o := range snapshot {
		if o == nil || o.SubscriptionId == "" {
			continue
		}
		usable++
		if !o.Status.IsCancelled() {
			live[o.SubscriptionId] = true
		}
	}
	return live, usable
}

func (s *trackerService) FindSubscription(ctx context.Context, email, subscriptionId string) (*entity.SubscriptionRecord, error) {
	record, err := s.repo.FindOne(ctx, email, subscriptionId)
	if err != nil {
		return nil, storageError("find", err)
	}
	return record, nil
}

func (s *trackerService) FindSubscriptionsByEmail(ctx context.Context, email string) ([]*entity.SubscriptionRecord, error) {
	records, err := s.repo.FindAllByEmail(ctx, email)
	if err != nil {
		return nil, storageError("find by email", err)
	}
	return records, nil
}

func (s *trackerService) GetAllSubscriptions(ctx context.Context) ([]*entity.SubscriptionRecord, error) {
	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, storageError("list", err)
	}
	return records, nil
}

func (s *trackerService) GetStatistics(ctx context.Context) (*entity.SubscriptionStats, error) {
	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, storageError("list", err)
	}

	stats := &entity.SubscriptionStats{
		TotalSubscriptions: len(records),
		TotalEmailsSent:    len(records),
		ByPlan:             make(map[string]int),
	}
	emails := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.Status.IsLive() {
			stats.ActiveSubscriptions++
		}
		emails[r.Email] = struct{}{}
		stats.ByPlan[r.PlanNickname]++
	}
	stats.UniqueCustomers = len(emails)
	return stats, nil
}

func (s *trackerService) ClearAllRecords(ctx context.Context) error {
	release, err := s.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer release()

	if err := s.repo.DeleteAll(ctx); err != nil {
		return storageError("clear", err)
	}
	if err := s.exporter.Reset(ctx); err != nil {
		return storageError("reset export", err)
	}
	s.logger.Warn(trackerModule, "All subscription records cleared", nil)
	return nil
}
