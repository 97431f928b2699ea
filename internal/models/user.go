package models

import (
	"time"
)

type User struct {
	TelegramID       int64   `gorm:"primaryKey"`
	Username         string  `gorm:"size:255"`
	FirstName        string  `gorm:"size:255"`
	JoinedChannel    bool    `gorm:"default:false"`
	ReferralCode     string  `gorm:"size:6;uniqueIndex;not null"`
	ReferredBy       *string `gorm:"size:6;index"`
	ReferralCount    int     `gorm:"default:0"`
	Balance          int64   `gorm:"default:0"` // whole rupees, no fractional units
	AppAccess        bool    `gorm:"default:false"`
	WithdrawalAccess bool    `gorm:"default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
