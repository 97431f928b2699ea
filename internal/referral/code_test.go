package referral

import (
	"strings"
	"testing"
)

func TestNewCodeShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("code %q: got length %d, want %d", code, len(code), codeLength)
		}
		for _, c := range code {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("code %q contains %q outside the alphabet", code, c)
			}
		}
	}
}

func TestNewCodeVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode: %v", err)
		}
		seen[code] = true
	}
	// 50 draws from a 36^6 space repeating would mean a broken source.
	if len(seen) < 2 {
		t.Fatalf("expected varied codes, got %d distinct over 50 draws", len(seen))
	}
}

func TestLink(t *testing.T) {
	got := Link("intersell_bot", "ABC123")
	want := "https://t.me/intersell_bot?start=ABC123"
	if got != want {
		t.Errorf("Link: got %q, want %q", got, want)
	}
}
