package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"intersell-bot/internal/models"
	"intersell-bot/internal/referral"
)

// Gorm is the PostgreSQL-backed ledger. Uniqueness invariants (referral
// code, referral pair) are enforced by unique indexes; per-user mutual
// exclusion comes from SELECT ... FOR UPDATE inside Transact.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) Transact(ctx context.Context, fn func(tx referral.Ledger) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}

func (s *Gorm) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "telegram_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, referral.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return &user, nil
}

func (s *Gorm) LockUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, "telegram_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, referral.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", id, err)
	}
	return &user, nil
}

func (s *Gorm) UpsertNewUser(ctx context.Context, id int64, profile referral.Profile, code string) (*models.User, bool, error) {
	var existing models.User
	err := s.db.WithContext(ctx).First(&existing, "telegram_id = ?", id).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to check user %d: %w", id, err)
	}

	user := models.User{
		TelegramID:   id,
		Username:     profile.Username,
		FirstName:    profile.FirstName,
		ReferralCode: code,
	}
	err = s.db.WithContext(ctx).Create(&user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Either the code collided or a concurrent insert won the race on
		// the primary key; re-read to tell them apart.
		var raced models.User
		if rerr := s.db.WithContext(ctx).First(&raced, "telegram_id = ?", id).Error; rerr == nil {
			return &raced, false, nil
		}
		return nil, false, referral.ErrCodeConflict
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user %d: %w", id, err)
	}
	return &user, true, nil
}

func (s *Gorm) FindByCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "referral_code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, referral.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up code %s: %w", code, err)
	}
	return &user, nil
}

func (s *Gorm) RecordReferral(ctx context.Context, referrerID, referredID int64) (bool, error) {
	event := models.Referral{ReferrerID: referrerID, ReferredID: referredID}
	err := s.db.WithContext(ctx).Create(&event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record referral %d->%d: %w", referrerID, referredID, err)
	}
	return true, nil
}

func (s *Gorm) ApplyReferralReward(ctx context.Context, referrerID int64, delta int64, newCount int, unlockWithdrawal bool) error {
	updates := map[string]interface{}{
		"balance":        gorm.Expr("balance + ?", delta),
		"referral_count": newCount,
	}
	if unlockWithdrawal {
		updates["withdrawal_access"] = true
	}
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("telegram_id = ?", referrerID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to credit referrer %d: %w", referrerID, err)
	}
	return nil
}

func (s *Gorm) SetReferredBy(ctx context.Context, referredID int64, code string) error {
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("telegram_id = ? AND referred_by IS NULL", referredID).
		Update("referred_by", code).Error
	if err != nil {
		return fmt.Errorf("failed to set referred_by for %d: %w", referredID, err)
	}
	return nil
}

func (s *Gorm) SetJoinedChannel(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("telegram_id = ?", id).
		Update("joined_channel", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark channel join for %d: %w", id, err)
	}
	return nil
}

func (s *Gorm) GrantAppAccess(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("telegram_id = ?", id).
		Update("app_access", true).Error
	if err != nil {
		return fmt.Errorf("failed to grant app access for %d: %w", id, err)
	}
	return nil
}

func (s *Gorm) SettleWithdrawal(ctx context.Context, id int64, destination string) (*models.Withdrawal, error) {
	var withdrawal *models.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "telegram_id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return referral.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock user %d: %w", id, err)
		}

		if !user.WithdrawalAccess {
			return &referral.AccessDeniedError{Remaining: referral.RemainingForUnlock(user.ReferralCount)}
		}
		if user.Balance < referral.MinWithdrawal {
			return &referral.InsufficientFundsError{Balance: user.Balance, Minimum: referral.MinWithdrawal}
		}

		amount := user.Balance
		if err := tx.Model(&user).Update("balance", 0).Error; err != nil {
			return fmt.Errorf("failed to reset balance for %d: %w", id, err)
		}

		withdrawal = &models.Withdrawal{
			ID:          uuid.NewString(),
			UserID:      id,
			Amount:      amount,
			Destination: destination,
			Status:      "pending",
			CreatedAt:   time.Now(),
		}
		if err := tx.Create(withdrawal).Error; err != nil {
			return fmt.Errorf("failed to record withdrawal for %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}
