// FILE: internal/dto/subscription_dto.go
package dto

import "time"

type SubscriptionRecordResponse struct {
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

type SubscriptionStatsResponse struct {
	TotalSubscriptions  int            `json:"total_subscriptions"`
	TotalEmailsSent     int            `json:"total_emails_sent"`
	ActiveSubscriptions int            `json:"active_subscriptions"`
	UniqueCustomers     int            `json:"unique_customers"`
	ByPlan              map[string]int `json:"by_plan"`
}

type ShouldSendResponse struct {
	Email          string `json:"email"`
	SubscriptionId string `json:"subscription_id"`
	ShouldSend     bool   `json:"should_send"`
}

// ObservationRequest triggers the delivery pipeline for one subscription by hand.
type ObservationRequest struct {
	Source                string `json:"source" validate:"omitempty,oneof=stripe csv_watcher manual"`
	Email                 string `json:"email" validate:"required,email"`
	CustomerId            string `json:"customer_id"`
	SubscriptionId        string `json:"subscription_id" validate:"required"`
	Status                string `json:"status" validate:"required"`
	SubscriptionStartDate string `json:"subscription_start_date"`
	CurrentPeriodStart    string `json:"current_period_start"`
	CurrentPeriodEnd      string `json:"current_period_end"`
	PlanId                string `json:"plan_id"`
	PlanAmount            string `json:"plan_amount"`
	Currency              string `json:"currency"`
	PlanNickname          string `json:"planNickname"`
}

type DeliveryResponse struct {
	Action       string                      `json:"action"`
	DownloadLink string                      `json:"download_link,omitempty"`
	Record       *SubscriptionRecordResponse `json:"record,omitempty"`
}

// SnapshotEntryRequest is one upstream subscription in a hand-supplied
// reconciliation snapshot. Only the id and status are consulted.
type SnapshotEntryRequest struct {
	Email          string `json:"email"`
	SubscriptionId string `json:"subscription_id" validate:"required"`
	Status         string `json:"status" validate:"required"`
}

type ReconcileRequest struct {
	Subscriptions []SnapshotEntryRequest `json:"subscriptions" validate:"required,min=1,dive"`
}

type RecordKeyResponse struct {
	Email          string `json:"email"`
	SubscriptionId string `json:"subscription_id"`
}

type ReconcileResponse struct {
	SnapshotSize     int                 `json:"snapshot_size"`
	Checked          int                 `json:"checked"`
	AlreadyCancelled int                 `json:"already_cancelled"`
	Cancelled        []RecordKeyResponse `json:"cancelled"`
}

type ProductMappingResponse struct {
	ProductName  string `json:"product_name"`
	DownloadLink string `json:"download_link"`
}

type ProductMappingRequest struct {
	ProductName  string `json:"product_name" validate:"required"`
	DownloadPath string `json:"download_path" validate:"required,startswith=/"`
}
