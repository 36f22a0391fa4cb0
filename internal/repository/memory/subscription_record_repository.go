package memory

import (
	"context"
	"sort"
	"sync"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// SubscriptionRecordRepository keeps the send log in process memory. Used by
// tests and by TRACKER_STORE=memory for dry runs.
type SubscriptionRecordRepository struct {
	cache *cache.Cache
	// guards read-modify-write in MarkCancelled
	mu sync.Mutex
}

func NewSubscriptionRecordRepository() *SubscriptionRecordRepository {
	return &SubscriptionRecordRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

var _ contract.SubscriptionRecordRepository = (*SubscriptionRecordRepository)(nil)

func (r *SubscriptionRecordRepository) FindOne(ctx context.Context, email, subscriptionId string) (*entity.SubscriptionRecord, error) {
	x, found := r.cache.Get(cacheKey(email, subscriptionId))
	if !found {
		return nil, nil
	}
	return copyRecord(x.(*entity.SubscriptionRecord)), nil
}

func (r *SubscriptionRecordRepository) FindAll(ctx context.Context) ([]*entity.SubscriptionRecord, error) {
	return r.collect(func(*entity.SubscriptionRecord) bool { return true }), nil
}

func (r *SubscriptionRecordRepository) FindAllByEmail(ctx context.Context, email string) ([]*entity.SubscriptionRecord, error) {
	return r.collect(func(rec *entity.SubscriptionRecord) bool { return rec.Email == email }), nil
}

func (r *SubscriptionRecordRepository) Create(ctx context.Context, record *entity.SubscriptionRecord) error {
	if err := r.cache.Add(cacheKey(record.Email, record.SubscriptionId), copyRecord(record), cache.NoExpiration); err != nil {
		return contract.ErrRecordExists
	}
	return nil
}

func (r *SubscriptionRecordRepository) MarkCancelled(ctx context.Context, email, subscriptionId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cacheKey(email, subscriptionId)
	x, found := r.cache.Get(key)
	if !found {
		return contract.ErrRecordNotFound
	}
	updated := copyRecord(x.(*entity.SubscriptionRecord))
	updated.IsCancelled = true
	r.cache.Set(key, updated, cache.NoExpiration)
	return nil
}

func (r *SubscriptionRecordRepository) DeleteAll(ctx context.Context) error {
	r.cache.Flush()
	return nil
}

func (r *SubscriptionRecordRepository) collect(keep func(*entity.SubscriptionRecord) bool) []*entity.SubscriptionRecord {
	items := r.cache.Items()
	records := make([]*entity.SubscriptionRecord, 0, len(items))
	for _, item := range items {
		rec := item.Object.(*entity.SubscriptionRecord)
		if keep(rec) {
			records = append(records, copyRecord(rec))
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Key().String() < records[j].Key().String()
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records
}

func cacheKey(email, subscriptionId string) string {
	return entity.RecordKey{Email: email, SubscriptionId: subscriptionId}.String()
}

func copyRecord(r *entity.SubscriptionRecord) *entity.SubscriptionRecord {
	c := *r
	return &c
}
