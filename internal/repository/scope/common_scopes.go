package scope

import "gorm.io/gorm"

// Chronological matches the order the file and memory stores return:
// creation time, then the record key.
func Chronological(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("email ASC").Order("subscription_id ASC")
}
