package referral

import (
	"context"
	"errors"
	"fmt"
)

// Outcome of processing one inbound referral event.
type Outcome string

const (
	Accepted             Outcome = "accepted"
	RejectedSelfReferral Outcome = "rejected_self_referral"
	RejectedCodeNotFound Outcome = "rejected_code_not_found"
	RejectedDuplicate    Outcome = "rejected_duplicate"
)

// Result describes what happened to a referral event. ReferrerID and the
// counters are only meaningful when Outcome is Accepted. Unlocked is true
// on exactly one acceptance per referrer: the one whose post-increment
// count reaches the threshold.
type Result struct {
	Outcome    Outcome
	ReferrerID int64
	NewCount   int
	NewBalance int64
	Unlocked   bool
}

// Processor applies referral events against the ledger. It is stateless;
// all shared state lives behind the Ledger.
type Processor struct {
	ledger Ledger
}

func NewProcessor(ledger Ledger) *Processor {
	return &Processor{ledger: ledger}
}

// Apply validates and applies one referral event: referredID started the
// bot carrying code. Rejections never mutate state, and replaying an
// already-accepted event is a no-op reported as RejectedDuplicate, so the
// processor is safe under at-least-once delivery.
func (p *Processor) Apply(ctx context.Context, referredID int64, code string) (*Result, error) {
	referrer, err := p.ledger.FindByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return &Result{Outcome: RejectedCodeNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve referral code: %w", err)
	}

	if referrer.TelegramID == referredID {
		return &Result{Outcome: RejectedSelfReferral}, nil
	}

	res := &Result{Outcome: Accepted, ReferrerID: referrer.TelegramID}
	err = p.ledger.Transact(ctx, func(tx Ledger) error {
		// Lock the referrer row first so concurrent acceptances for the
		// same referrer serialize and the count read below is current.
		locked, err := tx.LockUser(ctx, referrer.TelegramID)
		if err != nil {
			return err
		}

		applied, err := tx.RecordReferral(ctx, locked.TelegramID, referredID)
		if err != nil {
			return err
		}
		if !applied {
			res.Outcome = RejectedDuplicate
			return nil
		}

		newCount := locked.ReferralCount + 1
		unlock := !locked.WithdrawalAccess && WithdrawalEligible(newCount)
		if err := tx.ApplyReferralReward(ctx, locked.TelegramID, RewardPerReferral, newCount, unlock); err != nil {
			return err
		}
		if err := tx.SetReferredBy(ctx, referredID, code); err != nil {
			return err
		}

		res.NewCount = newCount
		res.NewBalance = locked.Balance + RewardPerReferral
		res.Unlocked = unlock
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply referral: %w", err)
	}
	return res, nil
}
