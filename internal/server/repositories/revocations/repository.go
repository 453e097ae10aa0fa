// Package revocations records when an account's sessions were terminated so
// stateless session tokens issued before that instant can be refused.
package revocations

import (
	"context"
	"time"
)

// Repository stores one "revoked at" instant per account.
type Repository interface {
	// RevokeAccount marks every token issued to accountID at or before at as
	// revoked. The record expires after ttl, once all such tokens have
	// expired on their own.
	RevokeAccount(ctx context.Context, accountID string, at time.Time, ttl time.Duration) error
	// RevokedAt returns the last revocation instant and whether one exists.
	RevokedAt(ctx context.Context, accountID string) (time.Time, bool, error)
}
