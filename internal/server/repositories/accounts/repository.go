// Package accounts persists accounts and their reset-token state.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository is the account store. Lookups return common.ErrorNotFound when
// no row matches; Create returns common.ErrConflict on a duplicate email and
// a *common.ValidationError when the schema rejects the row.
type Repository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	// GetByResetToken returns the account whose pending reset matches token
	// and expires strictly after now.
	GetByResetToken(ctx context.Context, token string, now time.Time) (*models.Account, error)
	// SaveResetToken stores the account's reset token and expiry.
	SaveResetToken(ctx context.Context, account *models.Account) error
	// SavePasswordReset writes the new hash and cleared reset fields only if
	// the stored token still equals expectedToken and has not expired at now.
	// It returns common.ErrorNotFound when that condition no longer holds.
	SavePasswordReset(ctx context.Context, account *models.Account, expectedToken string, now time.Time) error
}
