// FILE: internal/repository/filestore/subscription_record_repository.go
// JSON-file implementation of the send log. The whole document is read on every
// call and rewritten through a temp file + rename so a crash never leaves half a file.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/repository/contract"
)

type logDocument struct {
	Subscriptions []recordJSON `json:"subscriptions"`
}

type recordJSON struct {
	Source                string    `json:"source"`
	Email                 string    `json:"email"`
	CustomerId            string    `json:"customer_id"`
	SubscriptionId        string    `json:"subscription_id"`
	Status                string    `json:"status"`
	SubscriptionStartDate *string   `json:"subscription_start_date"`
	CurrentPeriodStart    *string   `json:"current_period_start"`
	CurrentPeriodEnd      *string   `json:"current_period_end"`
	PlanId                string    `json:"plan_id"`
	PlanAmount            string    `json:"plan_amount"`
	Currency              string    `json:"currency"`
	PlanNickname          string    `json:"planNickname"`
	Duration              string    `json:"duration"`
	EmailSentAt           time.Time `json:"email_sent_at"`
	CreatedAt             time.Time `json:"created_at"`
	IsCancelled           bool      `json:"is_cancelled"`
}

type subscriptionRecordRepository struct {
	path string
	mu   sync.Mutex
}

// NewSubscriptionRecordRepository stores the log at path, creating it on first use.
func NewSubscriptionRecordRepository(path string) contract.SubscriptionRecordRepository {
	return &subscriptionRecordRepository{path: path}
}

func (r *subscriptionRecordRepository) FindOne(ctx context.Context, email, subscriptionId string) (*entity.SubscriptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range doc.Subscriptions {
		rec := &doc.Subscriptions[i]
		if rec.Email == email && rec.SubscriptionId == subscriptionId {
			return toEntity(rec), nil
		}
	}
	return nil, nil
}

func (r *subscriptionRecordRepository) FindAll(ctx context.Context) ([]*entity.SubscriptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	records := make([]*entity.SubscriptionRecord, 0, len(doc.Subscriptions))
	for i := range doc.Subscriptions {
		records = append(records, toEntity(&doc.Subscriptions[i]))
	}
	return records, nil
}

func (r *subscriptionRecordRepository) FindAllByEmail(ctx context.Context, email string) ([]*entity.SubscriptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	var records []*entity.SubscriptionRecord
	for i := range doc.Subscriptions {
		if doc.Subscriptions[i].Email == email {
			records = append(records, toEntity(&doc.Subscriptions[i]))
		}
	}
	return records, nil
}

func (r *subscriptionRecordRepository) Create(ctx context.Context, record *entity.SubscriptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	for i := range doc.Subscriptions {
		if doc.Subscriptions[i].Email == record.Email && doc.Subscriptions[i].SubscriptionId == record.SubscriptionId {
			return contract.ErrRecordExists
		}
	}
	doc.Subscriptions = append(doc.Subscriptions, fromEntity(record))
	return r.save(doc)
}

func (r *subscriptionRecordRepository) MarkCancelled(ctx context.Context, email, subscriptionId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	for i := range doc.Subscriptions {
		rec := &doc.Subscriptions[i]
		if rec.Email == email && rec.SubscriptionId == subscriptionId {
			if rec.IsCancelled {
				return nil
			}
			rec.IsCancelled = true
			return r.save(doc)
		}
	}
	return contract.ErrRecordNotFound
}

func (r *subscriptionRecordRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(&logDocument{Subscriptions: []recordJSON{}})
}

// load reads the log, writing an empty document first if the file does not exist yet.
func (r *subscriptionRecordRepository) load() (*logDocument, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		doc := &logDocument{Subscriptions: []recordJSON{}}
		if err := r.save(doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read subscription log %s: %w", r.path, err)
	}

	var doc logDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode subscription log %s: %w", r.path, err)
	}
	if doc.Subscriptions == nil {
		doc.Subscriptions = []recordJSON{}
	}
	return &doc, nil
}

func (r *subscriptionRecordRepository) save(doc *logDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode subscription log: %w", err)
	}
	return writeFileAtomic(r.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func toEntity(r *recordJSON) *entity.SubscriptionRecord {
	return &entity.SubscriptionRecord{
		Source:                entity.ObservationSource(r.Source),
		Email:                 r.Email,
		CustomerId:            r.CustomerId,
		SubscriptionId:        r.SubscriptionId,
		Status:                entity.SubscriptionStatus(r.Status),
		SubscriptionStartDate: derefString(r.SubscriptionStartDate),
		CurrentPeriodStart:    derefString(r.CurrentPeriodStart),
		CurrentPeriodEnd:      derefString(r.CurrentPeriodEnd),
		PlanId:                r.PlanId,
		PlanAmount:            r.PlanAmount,
		Currency:              r.Currency,
		PlanNickname:          r.PlanNickname,
		Duration:              r.Duration,
		EmailSentAt:           r.EmailSentAt,
		CreatedAt:             r.CreatedAt,
		IsCancelled:           r.IsCancelled,
	}
}

func fromEntity(r *entity.SubscriptionRecord) recordJSON {
	return recordJSON{
		Source:                string(r.Source),
		Email:                 r.Email,
		CustomerId:            r.CustomerId,
		SubscriptionId:        r.SubscriptionId,
		Status:                string(r.Status),
		SubscriptionStartDate: nullableString(r.SubscriptionStartDate),
		CurrentPeriodStart:    nullableString(r.CurrentPeriodStart),
		CurrentPeriodEnd:      nullableString(r.CurrentPeriodEnd),
		PlanId:                r.PlanId,
		PlanAmount:            r.PlanAmount,
		Currency:              r.Currency,
		PlanNickname:          r.PlanNickname,
		Duration:              r.Duration,
		EmailSentAt:           r.EmailSentAt,
		CreatedAt:             r.CreatedAt,
		IsCancelled:           r.IsCancelled,
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
