// Package interests resolves interest names for accounts.
package interests

import "context"

// Repository reads interest names. It never modifies associations.
type Repository interface {
	// NamesForAccount returns the names of the account's interests in the
	// order they were chosen. An account without interests yields an empty
	// slice.
	NamesForAccount(ctx context.Context, accountID string) ([]string, error)
}
