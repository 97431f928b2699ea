package store

import (
	"context"
	"errors"
	"testing"

	"intersell-bot/internal/referral"
)

func TestUpsertNewUser(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	user, created, err := mem.UpsertNewUser(ctx, 1, referral.Profile{Username: "alice", FirstName: "Alice"}, "ABC123")
	if err != nil {
		t.Fatalf("UpsertNewUser: %v", err)
	}
	if !created {
		t.Fatal("expected a fresh insert")
	}
	if user.ReferralCode != "ABC123" || user.Username != "alice" {
		t.Errorf("stored user: code=%q username=%q", user.ReferralCode, user.Username)
	}

	// Second sight returns the stored record unchanged, new code ignored.
	again, created, err := mem.UpsertNewUser(ctx, 1, referral.Profile{Username: "other"}, "NEW000")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Error("second upsert reported a fresh insert")
	}
	if again.ReferralCode != "ABC123" || again.Username != "alice" {
		t.Errorf("existing record changed: code=%q username=%q", again.ReferralCode, again.Username)
	}

	// A different user colliding on the code must be rejected.
	_, _, err = mem.UpsertNewUser(ctx, 2, referral.Profile{}, "ABC123")
	if !errors.Is(err, referral.ErrCodeConflict) {
		t.Fatalf("code collision: got %v, want ErrCodeConflict", err)
	}
	if _, err := mem.GetUser(ctx, 2); !errors.Is(err, referral.ErrNotFound) {
		t.Errorf("rejected insert left a record behind: %v", err)
	}
}

func TestFindByCode(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	if _, _, err := mem.UpsertNewUser(ctx, 1, referral.Profile{}, "ABC123"); err != nil {
		t.Fatalf("UpsertNewUser: %v", err)
	}

	user, err := mem.FindByCode(ctx, "ABC123")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if user.TelegramID != 1 {
		t.Errorf("FindByCode: got user %d, want 1", user.TelegramID)
	}

	if _, err := mem.FindByCode(ctx, "NOPE00"); !errors.Is(err, referral.ErrNotFound) {
		t.Errorf("unknown code: got %v, want ErrNotFound", err)
	}
}

func TestRecordReferralPairUnique(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	applied, err := mem.RecordReferral(ctx, 1, 2)
	if err != nil || !applied {
		t.Fatalf("first insert: applied=%v err=%v", applied, err)
	}
	applied, err = mem.RecordReferral(ctx, 1, 2)
	if err != nil {
		t.Fatalf("repeat insert: %v", err)
	}
	if applied {
		t.Error("repeat insert reported applied")
	}

	// Same referred user under a different referrer is a distinct pair.
	applied, err = mem.RecordReferral(ctx, 3, 2)
	if err != nil || !applied {
		t.Errorf("distinct pair: applied=%v err=%v", applied, err)
	}
}

func TestSetReferredByFirstWins(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	if _, _, err := mem.UpsertNewUser(ctx, 1, referral.Profile{}, "ABC123"); err != nil {
		t.Fatalf("UpsertNewUser: %v", err)
	}

	if err := mem.SetReferredBy(ctx, 1, "AAA111"); err != nil {
		t.Fatalf("SetReferredBy: %v", err)
	}
	if err := mem.SetReferredBy(ctx, 1, "BBB222"); err != nil {
		t.Fatalf("second SetReferredBy: %v", err)
	}

	user, err := mem.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.ReferredBy == nil || *user.ReferredBy != "AAA111" {
		t.Errorf("ReferredBy=%v, want AAA111", user.ReferredBy)
	}
}

func TestSettleWithdrawalFailuresLeaveState(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	if _, _, err := mem.UpsertNewUser(ctx, 1, referral.Profile{}, "ABC123"); err != nil {
		t.Fatalf("UpsertNewUser: %v", err)
	}

	// No access yet.
	if _, err := mem.SettleWithdrawal(ctx, 1, "a@upi"); err == nil {
		t.Fatal("settle without access succeeded")
	}

	// Unlock but keep the balance under the minimum.
	if err := mem.ApplyReferralReward(ctx, 1, 45, 10, true); err != nil {
		t.Fatalf("ApplyReferralReward: %v", err)
	}
	_, err := mem.SettleWithdrawal(ctx, 1, "a@upi")
	var insufficient *referral.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientFundsError", err)
	}

	user, _ := mem.GetUser(ctx, 1)
	if user.Balance != 45 {
		t.Errorf("failed settle mutated balance: %d", user.Balance)
	}
	if len(mem.Withdrawals()) != 0 {
		t.Errorf("failed settle appended a withdrawal record")
	}
}

func TestSettleWithdrawalAppendsRecord(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	if _, _, err := mem.UpsertNewUser(ctx, 1, referral.Profile{}, "ABC123"); err != nil {
		t.Fatalf("UpsertNewUser: %v", err)
	}
	if err := mem.ApplyReferralReward(ctx, 1, 150, 10, true); err != nil {
		t.Fatalf("ApplyReferralReward: %v", err)
	}

	w, err := mem.SettleWithdrawal(ctx, 1, "name@okbank")
	if err != nil {
		t.Fatalf("SettleWithdrawal: %v", err)
	}
	if w.Amount != 150 || w.Status != "pending" || w.ID == "" {
		t.Errorf("record: amount=%d status=%q id=%q", w.Amount, w.Status, w.ID)
	}

	records := mem.Withdrawals()
	if len(records) != 1 || records[0].ID != w.ID {
		t.Fatalf("stored records: %+v", records)
	}
}

func TestTransactComposesAtomically(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	if _, _, err := mem.UpsertNewUser(ctx, 1, referral.Profile{}, "ABC123"); err != nil {
		t.Fatalf("UpsertNewUser: %v", err)
	}

	err := mem.Transact(ctx, func(tx referral.Ledger) error {
		locked, err := tx.LockUser(ctx, 1)
		if err != nil {
			return err
		}
		applied, err := tx.RecordReferral(ctx, locked.TelegramID, 2)
		if err != nil {
			return err
		}
		if !applied {
			t.Error("pair unexpectedly present")
		}
		return tx.ApplyReferralReward(ctx, locked.TelegramID, 15, locked.ReferralCount+1, false)
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}

	user, _ := mem.GetUser(ctx, 1)
	if user.ReferralCount != 1 || user.Balance != 15 {
		t.Errorf("after transact: count=%d balance=%d", user.ReferralCount, user.Balance)
	}
}
