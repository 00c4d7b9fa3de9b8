// Package model defines domain entities used by services and repositories.
package model

import "strings"

// Account is one credential set loaded from the account source.
type Account struct {
	ID       int64
	Phone    string
	Password string
	DeviceID string // assigned device id, empty until backfilled
	Enabled  bool
}

// Tokens collects an issued access/refresh pair.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// StoredTokens is the cached session for one account.
type StoredTokens struct {
	AccessToken  string
	RefreshToken string
	SavedAt      int64 // epoch ms
	DeviceID     string
}

// LoginOutcome is the result of one orchestration run for one account.
type LoginOutcome struct {
	OK      bool
	Reason  string
	Tokens  *Tokens
	UsedOTP string // OTP value that succeeded, empty when none was needed
}

// Summary aggregates one batch run.
type Summary struct {
	Success   int
	AlreadyOK int
	Relogin   int
	Fail      int
	Accounts  int
}

// NormalizePhone reduces a phone/username to its canonical token-store key:
// digits only, lowercased.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
