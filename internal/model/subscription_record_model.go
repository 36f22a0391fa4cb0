package model

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionRecord struct {
	Id                    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Source                string    `gorm:"type:varchar(32);not null;default:'stripe'"`
	Email                 string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_subscription_records_pair,priority:1"`
	CustomerId            string    `gorm:"type:varchar(255)"`
	SubscriptionId        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_subscription_records_pair,priority:2;index"`
	Status                string    `gorm:"type:varchar(50);not null"`
	SubscriptionStartDate *string   `gorm:"type:varchar(64)"`
	CurrentPeriodStart    *string   `gorm:"type:varchar(64)"`
	CurrentPeriodEnd      *string   `gorm:"type:varchar(64)"`
	PlanId                string    `gorm:"type:varchar(255)"`
	PlanAmount            string    `gorm:"type:varchar(32)"`
	Currency              string    `gorm:"type:varchar(8)"`
	PlanNickname          string    `gorm:"type:varchar(255);index"`
	Duration              string    `gorm:"type:varchar(32)"`
	IsCancelled           bool      `gorm:"not null;default:false;index"`
	EmailSentAt           time.Time `gorm:"not null"`
	CreatedAt             time.Time `gorm:"not null"`
}

func (SubscriptionRecord) TableName() string {
	return "subscription_records"
}
