package referral

// Program constants
const (
	UnlockThreshold   = 10 // referrals needed for app + withdrawal access
	RewardPerReferral = 15 // rupees credited per accepted referral
	MinWithdrawal     = 50 // minimum balance for a withdrawal request
)

// AppEligible reports whether the app download link may be handed out.
func AppEligible(referralCount int) bool {
	return referralCount >= UnlockThreshold
}

// WithdrawalEligible reports whether withdrawals are unlocked.
func WithdrawalEligible(referralCount int) bool {
	return referralCount >= UnlockThreshold
}

// RemainingForUnlock returns how many more referrals are needed, never negative.
func RemainingForUnlock(referralCount int) int {
	if referralCount >= UnlockThreshold {
		return 0
	}
	return UnlockThreshold - referralCount
}

// Earnings returns the total referral income for a given count.
func Earnings(referralCount int) int64 {
	return int64(referralCount) * RewardPerReferral
}
