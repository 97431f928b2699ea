package referral

import "fmt"

// Link builds the shareable start link for a referral code.
func Link(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, code)
}
