package models

import (
	"time"
)

type Withdrawal struct {
	ID          string `gorm:"primaryKey;size:36"` // uuid
	UserID      int64  `gorm:"not null;index"`
	Amount      int64  `gorm:"not null"`
	Destination string `gorm:"size:255"` // UPI id, opaque
	Status      string `gorm:"default:'pending'"`
	CreatedAt   time.Time
	PaidAt      *time.Time
}
