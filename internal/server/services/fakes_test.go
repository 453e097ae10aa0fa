package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/interests"
)

// fakeClock is a settable time source shared by the service and its issuers.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAccounts is an in-memory account store with a unique email index.
type fakeAccounts struct {
	mu    sync.Mutex
	rows  map[string]models.Account
	err   error
	block bool

	createErr error
	creates   int
	saves     int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{rows: make(map[string]models.Account)}
}

func (f *fakeAccounts) fail(ctx context.Context) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *fakeAccounts) Create(ctx context.Context, a *models.Account) error {
	if err := f.fail(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	for _, row := range f.rows {
		if row.Email == a.Email {
			return common.ErrConflict
		}
	}
	a.CreatedAt = time.Now()
	f.rows[a.ID] = *a
	return nil
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if err := f.fail(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.Email == email {
			a := row
			return &a, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if err := f.fail(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &row, nil
}

func (f *fakeAccounts) GetByResetToken(ctx context.Context, token string, now time.Time) (*models.Account, error) {
	if err := f.fail(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.HasPendingReset() && *row.ResetToken == token && now.Before(*row.ResetTokenExpires) {
			a := row
			return &a, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccounts) SaveResetToken(ctx context.Context, a *models.Account) error {
	if err := f.fail(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[a.ID]
	if !ok {
		return common.ErrorNotFound
	}
	f.saves++
	row.ResetToken = a.ResetToken
	row.ResetTokenExpires = a.ResetTokenExpires
	f.rows[a.ID] = row
	return nil
}

func (f *fakeAccounts) SavePasswordReset(ctx context.Context, a *models.Account, expectedToken string, now time.Time) error {
	if err := f.fail(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[a.ID]
	if !ok || !row.HasPendingReset() || *row.ResetToken != expectedToken || !now.Before(*row.ResetTokenExpires) {
		return common.ErrorNotFound
	}
	f.saves++
	row.PasswordHash = a.PasswordHash
	row.ResetToken = a.ResetToken
	row.ResetTokenExpires = a.ResetTokenExpires
	f.rows[a.ID] = row
	return nil
}

func (f *fakeAccounts) get(id string) models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

// fakeInterests resolves names from a catalog using the ids stored on the
// account.
type fakeInterests struct {
	accounts *fakeAccounts
	catalog  map[string]string
	err      error
}

func (f *fakeInterests) NamesForAccount(ctx context.Context, accountID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	names := make([]string, 0)
	for _, id := range f.accounts.get(accountID).InterestIDs {
		if name, ok := f.catalog[id]; ok {
			names = append(names, name)
		}
	}
	return names, nil
}

type fakeRepoManager struct {
	accounts  *fakeAccounts
	interests *fakeInterests
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(db dbx.DBTX) accounts.Repository     { return m.accounts }
func (m *fakeRepoManager) Interests(db dbx.DBTX) interests.Repository   { return m.interests }

type fakeRevocations struct {
	mu   sync.Mutex
	at   map[string]time.Time
	ttls map[string]time.Duration
	err  error
}

func newFakeRevocations() *fakeRevocations {
	return &fakeRevocations{at: make(map[string]time.Time), ttls: make(map[string]time.Duration)}
}

func (f *fakeRevocations) RevokeAccount(ctx context.Context, accountID string, at time.Time, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.at[accountID] = at.Truncate(time.Second)
	f.ttls[accountID] = ttl
	return nil
}

func (f *fakeRevocations) RevokedAt(ctx context.Context, accountID string) (time.Time, bool, error) {
	if f.err != nil {
		return time.Time{}, false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.at[accountID]
	return at, ok, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeNotifier) messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.sent...)
}
