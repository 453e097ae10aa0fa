// Package models holds the persistent entities of the authentication server.
package models

import "time"

// Account is a registered user. PasswordHash holds a bcrypt digest and is
// never serialized to clients. ResetToken and ResetTokenExpires are either
// both set (a reset is pending) or both nil.
type Account struct {
	ID                string     `db:"id"`
	Email             string     `db:"email"`
	PasswordHash      string     `db:"password"`
	DisplayName       string     `db:"display_name"`
	Age               *int       `db:"age"`
	PricePreference   *int       `db:"price_preference"`
	InterestIDs       []string   `db:"-"`
	AvatarURL         string     `db:"avatar_url"`
	ResetToken        *string    `db:"reset_password_token"`
	ResetTokenExpires *time.Time `db:"reset_password_expires"`
	CreatedAt         time.Time  `db:"created_at"`
}

// HasPendingReset reports whether a reset token has been issued and not consumed.
func (a Account) HasPendingReset() bool {
	return a.ResetToken != nil && a.ResetTokenExpires != nil
}

// Interest is a named topic an account can be associated with.
type Interest struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}
