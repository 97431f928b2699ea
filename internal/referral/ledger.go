package referral

import (
	"context"
	"errors"
	"fmt"

	"intersell-bot/internal/models"
)

var (
	// ErrNotFound means no user matched the given id or referral code.
	ErrNotFound = errors.New("user not found")
	// ErrCodeConflict means a generated referral code collided with an
	// existing one; the caller should regenerate and retry.
	ErrCodeConflict = errors.New("referral code already exists")
)

// AccessDeniedError is returned when a withdrawal is requested before
// the referral threshold is reached.
type AccessDeniedError struct {
	Remaining int // referrals still needed
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("withdrawal access locked: %d more referrals needed", e.Remaining)
}

// InsufficientFundsError is returned when the balance is below the
// minimum withdrawal amount.
type InsufficientFundsError struct {
	Balance int64
	Minimum int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, minimum %d", e.Balance, e.Minimum)
}

// Profile carries the externally supplied identity fields recorded on
// first contact.
type Profile struct {
	Username  string
	FirstName string
}

// Ledger is the durable state of the referral program: user records, the
// append-only referral event set, and withdrawal records. Mutations on
// the same user must be linearizable; Transact and LockUser exist so
// callers can compose multi-step mutations into one atomic unit.
type Ledger interface {
	// Transact runs fn inside a single transaction. The Ledger passed to
	// fn must be used for every operation within it.
	Transact(ctx context.Context, fn func(tx Ledger) error) error

	GetUser(ctx context.Context, id int64) (*models.User, error)
	// LockUser reads a user with the row held for update. Only meaningful
	// inside Transact.
	LockUser(ctx context.Context, id int64) (*models.User, error)
	// UpsertNewUser inserts the user if absent, assigning code, and
	// returns the stored record. The second result is false when the user
	// already existed (the stored record is returned unchanged). Returns
	// ErrCodeConflict when code is already taken by another user.
	UpsertNewUser(ctx context.Context, id int64, profile Profile, code string) (*models.User, bool, error)
	FindByCode(ctx context.Context, code string) (*models.User, error)

	// RecordReferral appends the (referrer, referred) event if the pair is
	// new and reports whether it was applied.
	RecordReferral(ctx context.Context, referrerID, referredID int64) (bool, error)
	// ApplyReferralReward credits delta to the referrer's balance, sets the
	// referral count, and flips the withdrawal flag when requested.
	ApplyReferralReward(ctx context.Context, referrerID int64, delta int64, newCount int, unlockWithdrawal bool) error
	// SetReferredBy records who referred a user; first referrer wins, later
	// calls are no-ops.
	SetReferredBy(ctx context.Context, referredID int64, code string) error

	SetJoinedChannel(ctx context.Context, id int64) error
	// GrantAppAccess marks the app link as handed out. The flag is set
	// lazily on the first qualifying request, not when the threshold is
	// crossed.
	GrantAppAccess(ctx context.Context, id int64) error

	// SettleWithdrawal atomically zeroes the balance and appends a pending
	// withdrawal record for the settlement provider. Fails with
	// *AccessDeniedError or *InsufficientFundsError without mutating state.
	SettleWithdrawal(ctx context.Context, id int64, destination string) (*models.Withdrawal, error)
}
