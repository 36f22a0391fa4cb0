// FILE: internal/entity/subscription_entity.go
package entity

import (
	"strings"
	"time"
)

type SubscriptionStatus string
type ObservationSource string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusCancelled  SubscriptionStatus = "cancelled" // British spelling seen in manual imports
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"

	SourceStripe     ObservationSource = "stripe"
	SourceCSVWatcher ObservationSource = "csv_watcher"
	SourceManual     ObservationSource = "manual"
)

// IsLive reports whether a subscription in this status should receive a confirmation email.
func (s SubscriptionStatus) IsLive() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// IsCancelled accepts both spellings.
func (s SubscriptionStatus) IsCancelled() bool {
	return s == SubscriptionStatusCanceled || s == SubscriptionStatusCancelled
}

// Observation is one subscription's state as seen by a poller, an import or a manual trigger.
// Date fields hold ISO-8601 strings; an empty string means the upstream had no value.
type Observation struct {
	Source                ObservationSource
	Email                 string
	CustomerId            string
	SubscriptionId        string
	Status                SubscriptionStatus
	SubscriptionStartDate string
	CurrentPeriodStart    string
	CurrentPeriodEnd      string
	PlanId                string
	PlanAmount            string
	Currency              string
	PlanNickname          string
}

// Key returns the dedup key of the observation.
func (o *Observation) Key() RecordKey {
	return RecordKey{Email: o.Email, SubscriptionId: o.SubscriptionId}
}

// SubscriptionRecord is the persisted proof that a confirmation email went out
// for one (email, subscription id) pair. Only IsCancelled changes after creation.
type SubscriptionRecord struct {
	Source                ObservationSource
	Email                 string
	CustomerId            string
	SubscriptionId        string
	Status                SubscriptionStatus
	SubscriptionStartDate string
	CurrentPeriodStart    string
	CurrentPeriodEnd      string
	PlanId                string
	PlanAmount            string
	Currency              string
	PlanNickname          string
	Duration              string
	EmailSentAt           time.Time
	CreatedAt             time.Time
	IsCancelled           bool
}

func (r *SubscriptionRecord) Key() RecordKey {
	return RecordKey{Email: r.Email, SubscriptionId: r.SubscriptionId}
}

// RecordKey is the (email, subscription id) identity of a SubscriptionRecord.
type RecordKey struct {
	Email          string
	SubscriptionId string
}

func (k RecordKey) String() string {
	return k.Email + ":" + k.SubscriptionId
}

// IsComplete is false when either half of the key is blank.
func (k RecordKey) IsComplete() bool {
	return strings.TrimSpace(k.Email) != "" && strings.TrimSpace(k.SubscriptionId) != ""
}

// SubscriptionStats is recomputed from the full log on every call.
type SubscriptionStats struct {
	TotalSubscriptions  int
	TotalEmailsSent     int
	ActiveSubscriptions int
	UniqueCustomers     int
	ByPlan              map[string]int
}

// ReconcileResult summarises one cancellation sweep.
type ReconcileResult struct {
	SnapshotSize     int
	Checked          int
	AlreadyCancelled int
	Cancelled        []RecordKey
}
