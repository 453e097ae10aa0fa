package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const (
	// ResetCodeLength is the number of characters in a reset code.
	ResetCodeLength = 8
	// ResetTokenExpiry is how long a reset code stays valid.
	ResetTokenExpiry = time.Hour
)

// ResetToken is a short single-use code and its expiry instant.
type ResetToken struct {
	Code      string
	ExpiresAt time.Time
}

// ResetTokenIssuer generates reset codes and drives an account's reset state
// between Issued and Consumed. It never mutates the account it is given.
type ResetTokenIssuer struct {
	ttl time.Duration
	now func() time.Time
}

func NewResetTokenIssuer(ttl time.Duration) *ResetTokenIssuer {
	if ttl <= 0 {
		ttl = ResetTokenExpiry
	}
	return &ResetTokenIssuer{ttl: ttl, now: time.Now}
}

// WithClock returns a copy of r that reads time from now.
func (r *ResetTokenIssuer) WithClock(now func() time.Time) *ResetTokenIssuer {
	c := *r
	c.now = now
	return &c
}

// TTL returns the validity window of issued codes.
func (r *ResetTokenIssuer) TTL() time.Duration {
	return r.ttl
}

// IssueFor returns a copy of account carrying a fresh code that expires one
// TTL from now. Any previously issued code is replaced.
func (r *ResetTokenIssuer) IssueFor(account models.Account) (models.Account, ResetToken, error) {
	code, err := common.RandomString(common.Alphanumeric, ResetCodeLength)
	if err != nil {
		return models.Account{}, ResetToken{}, fmt.Errorf("generate reset code: %w", err)
	}

	token := ResetToken{Code: code, ExpiresAt: r.now().Add(r.ttl)}

	updated := account
	updated.ResetToken = &token.Code
	updated.ResetTokenExpires = &token.ExpiresAt

	return updated, token, nil
}

// Validate reports whether code matches the account's pending reset and now
// is strictly before its expiry.
func (r *ResetTokenIssuer) Validate(account models.Account, code string, now time.Time) bool {
	if !account.HasPendingReset() || code == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(*account.ResetToken), []byte(code)) != 1 {
		return false
	}
	return now.Before(*account.ResetTokenExpires)
}

// Consume returns a copy of account with the pending reset cleared.
func (r *ResetTokenIssuer) Consume(account models.Account) models.Account {
	updated := account
	updated.ResetToken = nil
	updated.ResetTokenExpires = nil
	return updated
}
