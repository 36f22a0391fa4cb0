package specification

import "gorm.io/gorm"

// ByRecordKey matches the single row for an (email, subscription id) pair.
type ByRecordKey struct {
	Email          string
	SubscriptionId string
}

func (s ByRecordKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("email = ? AND subscription_id = ?", s.Email, s.SubscriptionId)
}
