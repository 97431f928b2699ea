package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"intersell-bot/internal/models"
	"intersell-bot/internal/referral"
)

type pairKey struct {
	referrerID int64
	referredID int64
}

// Memory is a mutex-guarded in-process ledger, used for local runs
// without PostgreSQL and throughout the tests. One mutex covers all
// state, so Transact trivially serializes with every other operation.
type Memory struct {
	mu          sync.Mutex
	users       map[int64]models.User
	codes       map[string]int64
	pairs       map[pairKey]time.Time
	withdrawals []models.Withdrawal
}

func NewMemory() *Memory {
	return &Memory{
		users: map[int64]models.User{},
		codes: map[string]int64{},
		pairs: map[pairKey]time.Time{},
	}
}

// memTx exposes the lock-free operations while Transact holds the mutex.
type memTx struct {
	m *Memory
}

func (s *Memory) Transact(ctx context.Context, fn func(tx referral.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(memTx{m: s})
}

func (s *Memory) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getUser(id)
}

func (s *Memory) getUser(id int64) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, referral.ErrNotFound
	}
	return &u, nil
}

func (s *Memory) LockUser(ctx context.Context, id int64) (*models.User, error) {
	return s.GetUser(ctx, id)
}

func (s *Memory) UpsertNewUser(ctx context.Context, id int64, profile referral.Profile, code string) (*models.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertNewUser(id, profile, code)
}

func (s *Memory) upsertNewUser(id int64, profile referral.Profile, code string) (*models.User, bool, error) {
	if existing, ok := s.users[id]; ok {
		return &existing, false, nil
	}
	if _, taken := s.codes[code]; taken {
		return nil, false, referral.ErrCodeConflict
	}
	now := time.Now()
	user := models.User{
		TelegramID:   id,
		Username:     profile.Username,
		FirstName:    profile.FirstName,
		ReferralCode: code,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[id] = user
	s.codes[code] = id
	return &user, true, nil
}

func (s *Memory) FindByCode(ctx context.Context, code string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByCode(code)
}

func (s *Memory) findByCode(code string) (*models.User, error) {
	id, ok := s.codes[code]
	if !ok {
		return nil, referral.ErrNotFound
	}
	return s.getUser(id)
}

func (s *Memory) RecordReferral(ctx context.Context, referrerID, referredID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordReferral(referrerID, referredID)
}

func (s *Memory) recordReferral(referrerID, referredID int64) (bool, error) {
	key := pairKey{referrerID: referrerID, referredID: referredID}
	if _, exists := s.pairs[key]; exists {
		return false, nil
	}
	s.pairs[key] = time.Now()
	return true, nil
}

func (s *Memory) ApplyReferralReward(ctx context.Context, referrerID int64, delta int64, newCount int, unlockWithdrawal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyReferralReward(referrerID, delta, newCount, unlockWithdrawal)
}

func (s *Memory) applyReferralReward(referrerID int64, delta int64, newCount int, unlockWithdrawal bool) error {
	user, ok := s.users[referrerID]
	if !ok {
		return referral.ErrNotFound
	}
	user.Balance += delta
	user.ReferralCount = newCount
	if unlockWithdrawal {
		user.WithdrawalAccess = true
	}
	user.UpdatedAt = time.Now()
	s.users[referrerID] = user
	return nil
}

func (s *Memory) SetReferredBy(ctx context.Context, referredID int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setReferredBy(referredID, code)
}

func (s *Memory) setReferredBy(referredID int64, code string) error {
	user, ok := s.users[referredID]
	if !ok || user.ReferredBy != nil {
		return nil // first referrer wins; unknown users are recorded on first contact
	}
	user.ReferredBy = &code
	user.UpdatedAt = time.Now()
	s.users[referredID] = user
	return nil
}

func (s *Memory) SetJoinedChannel(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return referral.ErrNotFound
	}
	user.JoinedChannel = true
	user.UpdatedAt = time.Now()
	s.users[id] = user
	return nil
}

func (s *Memory) GrantAppAccess(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return referral.ErrNotFound
	}
	user.AppAccess = true
	user.UpdatedAt = time.Now()
	s.users[id] = user
	return nil
}

func (s *Memory) SettleWithdrawal(ctx context.Context, id int64, destination string) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settleWithdrawal(id, destination)
}

func (s *Memory) settleWithdrawal(id int64, destination string) (*models.Withdrawal, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, referral.ErrNotFound
	}
	if !user.WithdrawalAccess {
		return nil, &referral.AccessDeniedError{Remaining: referral.RemainingForUnlock(user.ReferralCount)}
	}
	if user.Balance < referral.MinWithdrawal {
		return nil, &referral.InsufficientFundsError{Balance: user.Balance, Minimum: referral.MinWithdrawal}
	}

	amount := user.Balance
	user.Balance = 0
	user.UpdatedAt = time.Now()
	s.users[id] = user

	withdrawal := models.Withdrawal{
		ID:          uuid.NewString(),
		UserID:      id,
		Amount:      amount,
		Destination: destination,
		Status:      "pending",
		CreatedAt:   time.Now(),
	}
	s.withdrawals = append(s.withdrawals, withdrawal)
	return &withdrawal, nil
}

// Withdrawals returns a snapshot of all withdrawal records, oldest first.
func (s *Memory) Withdrawals() []models.Withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Withdrawal, len(s.withdrawals))
	copy(out, s.withdrawals)
	return out
}

// memTx delegates to the lock-free operations; the caller (Transact)
// already holds the store mutex.

func (t memTx) Transact(ctx context.Context, fn func(tx referral.Ledger) error) error {
	return fn(t)
}

func (t memTx) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return t.m.getUser(id)
}

func (t memTx) LockUser(ctx context.Context, id int64) (*models.User, error) {
	return t.m.getUser(id)
}

func (t memTx) UpsertNewUser(ctx context.Context, id int64, profile referral.Profile, code string) (*models.User, bool, error) {
	return t.m.upsertNewUser(id, profile, code)
}

func (t memTx) FindByCode(ctx context.Context, code string) (*models.User, error) {
	return t.m.findByCode(code)
}

func (t memTx) RecordReferral(ctx context.Context, referrerID, referredID int64) (bool, error) {
	return t.m.recordReferral(referrerID, referredID)
}

func (t memTx) ApplyReferralReward(ctx context.Context, referrerID int64, delta int64, newCount int, unlockWithdrawal bool) error {
	return t.m.applyReferralReward(referrerID, delta, newCount, unlockWithdrawal)
}

func (t memTx) SetReferredBy(ctx context.Context, referredID int64, code string) error {
	return t.m.setReferredBy(referredID, code)
}

func (t memTx) SetJoinedChannel(ctx context.Context, id int64) error {
	user, ok := t.m.users[id]
	if !ok {
		return referral.ErrNotFound
	}
	user.JoinedChannel = true
	t.m.users[id] = user
	return nil
}

func (t memTx) GrantAppAccess(ctx context.Context, id int64) error {
	user, ok := t.m.users[id]
	if !ok {
		return referral.ErrNotFound
	}
	user.AppAccess = true
	t.m.users[id] = user
	return nil
}

func (t memTx) SettleWithdrawal(ctx context.Context, id int64, destination string) (*models.Withdrawal, error) {
	return t.m.settleWithdrawal(id, destination)
}
