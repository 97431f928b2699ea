package models

import (
	"time"
)

// Referral is append-only: one row per accepted (referrer, referred)
// pair, guarded by the composite unique index.
type Referral struct {
	ID         uint  `gorm:"primaryKey"`
	ReferrerID int64 `gorm:"not null;uniqueIndex:idx_referral_pair"`
	ReferredID int64 `gorm:"not null;uniqueIndex:idx_referral_pair"`
	CreatedAt  time.Time
}
