package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// NewCode returns a random 6-character referral code. The source is
// crypto/rand so codes cannot be guessed from earlier ones.
func NewCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// UniqueCode generates codes until one is unused. The check races with
// concurrent inserts; the store's unique index is the final arbiter and
// callers of UpsertNewUser must retry on ErrCodeConflict.
func UniqueCode(ctx context.Context, ledger Ledger) (string, error) {
	for {
		code, err := NewCode()
		if err != nil {
			return "", err
		}
		_, err = ledger.FindByCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
}
