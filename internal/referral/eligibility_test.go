package referral

import "testing"

func TestEligibilityThresholds(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		app        bool
		withdrawal bool
		remaining  int
	}{
		{"zero", 0, false, false, 10},
		{"one", 1, false, false, 9},
		{"nine", 9, false, false, 1},
		{"threshold", 10, true, true, 0},
		{"above threshold", 11, true, true, 0},
		{"far above", 100, true, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppEligible(tt.count); got != tt.app {
				t.Errorf("AppEligible(%d): got %v, want %v", tt.count, got, tt.app)
			}
			if got := WithdrawalEligible(tt.count); got != tt.withdrawal {
				t.Errorf("WithdrawalEligible(%d): got %v, want %v", tt.count, got, tt.withdrawal)
			}
			if got := RemainingForUnlock(tt.count); got != tt.remaining {
				t.Errorf("RemainingForUnlock(%d): got %d, want %d", tt.count, got, tt.remaining)
			}
		})
	}
}

func TestEligibilityAgreesWithThreshold(t *testing.T) {
	// Both flags derive from the same counter and must never diverge.
	for n := 0; n <= 25; n++ {
		if WithdrawalEligible(n) != (n >= UnlockThreshold) {
			t.Errorf("WithdrawalEligible(%d) disagrees with threshold", n)
		}
		if AppEligible(n) != WithdrawalEligible(n) {
			t.Errorf("app and withdrawal eligibility diverge at %d", n)
		}
	}
}

func TestEarnings(t *testing.T) {
	tests := []struct {
		count int
		want  int64
	}{
		{0, 0},
		{1, 15},
		{9, 135},
		{10, 150},
		{33, 495},
	}

	for _, tt := range tests {
		if got := Earnings(tt.count); got != tt.want {
			t.Errorf("Earnings(%d): got %d, want %d", tt.count, got, tt.want)
		}
	}
}
