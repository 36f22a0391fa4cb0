// FILE: internal/repository/contract/subscription_record_repository.go
package contract

import (
	"context"
	"errors"

	"subscription-mailer-be/internal/entity"
)

var (
	ErrRecordExists   = errors.New("subscription record already exists")
	ErrRecordNotFound = errors.New("subscription record not found")
)

// SubscriptionRecordRepository is the persisted send log, keyed by (email, subscription id).
type SubscriptionRecordRepository interface {
	// FindOne returns nil, nil when the pair has no record.
	FindOne(ctx context.Context, email, subscriptionId string) (*entity.SubscriptionRecord, error)
	FindAll(ctx context.Context) ([]*entity.SubscriptionRecord, error)
	FindAllByEmail(ctx context.Context, email string) ([]*entity.SubscriptionRecord, error)
	// Create returns ErrRecordExists when the pair is already stored.
	Create(ctx context.Context, record *entity.SubscriptionRecord) error
	// MarkCancelled flips is_cancelled to true. Returns ErrRecordNotFound for unknown pairs.
	MarkCancelled(ctx context.Context, email, subscriptionId string) error
	DeleteAll(ctx context.Context) error
}

// SendLogExporter mirrors every created record as one flat row for reporting.
// The export is append-only and never reflects cancellations.
type SendLogExporter interface {
	Append(ctx context.Context, record *entity.SubscriptionRecord) error
	Reset(ctx context.Context) error
}
