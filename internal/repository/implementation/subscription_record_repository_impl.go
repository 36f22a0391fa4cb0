package implementation

import (
	"context"
	"errors"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/mapper"
	"subscription-mailer-be/internal/model"
	"subscription-mailer-be/internal/repository/contract"
	"subscription-mailer-be/internal/repository/scope"
	"subscription-mailer-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriptionRecordRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SubscriptionRecordMapper
}

func NewSubscriptionRecordRepository(db *gorm.DB) contract.SubscriptionRecordRepository {
	return &SubscriptionRecordRepositoryImpl{
		db:     db,
		mapper: mapper.NewSubscriptionRecordMapper(),
	}
}

func (r *SubscriptionRecordRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SubscriptionRecordRepositoryImpl) FindOne(ctx context.Context, email, subscriptionId string) (*entity.SubscriptionRecord, error) {
	var record model.SubscriptionRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specification.ByRecordKey{Email: email, SubscriptionId: subscriptionId})

	if err := query.First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&record), nil
}

func (r *SubscriptionRecordRepositoryImpl) FindAll(ctx context.Context) ([]*entity.SubscriptionRecord, error) {
	var records []*model.SubscriptionRecord
	query := r.db.WithContext(ctx).Scopes(scope.Chronological)

	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(records), nil
}

func (r *SubscriptionRecordRepositoryImpl) FindAllByEmail(ctx context.Context, email string) ([]*entity.SubscriptionRecord, error) {
	var records []*model.SubscriptionRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specification.Filter("email", email)).
		Scopes(scope.Chronological)

	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(records), nil
}

// Create relies on the unique (email, subscription_id) index. A conflicting
// insert affects zero rows instead of failing the transaction.
func (r *SubscriptionRecordRepositoryImpl) Create(ctx context.Context, record *entity.SubscriptionRecord) error {
	row := r.mapper.ToModel(record)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return contract.ErrRecordExists
	}
	return nil
}

func (r *SubscriptionRecordRepositoryImpl) MarkCancelled(ctx context.Context, email, subscriptionId string) error {
	result := r.applySpecifications(r.db.WithContext(ctx).Model(&model.SubscriptionRecord{}),
		specification.ByRecordKey{Email: email, SubscriptionId: subscriptionId},
	).Update("is_cancelled", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return contract.ErrRecordNotFound
	}
	return nil
}

func (r *SubscriptionRecordRepositoryImpl) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.SubscriptionRecord{}).Error
}
