package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/revocations"
)

// AuthResult is returned by Login and Register.
type AuthResult struct {
	Token           string
	AccountID       string
	DisplayName     string
	InterestNames   []string
	PricePreference *int
}

// RegisterProfile is the data supplied when creating an account.
type RegisterProfile struct {
	Email           string
	Password        string
	DisplayName     string
	Age             *int
	PricePreference *int
	InterestIDs     []string
	AvatarURL       string
}

// AccountService implements login, registration, logout and the password
// reset flow. It holds no per-request state.
type AccountService struct {
	db               *sql.DB
	repomanager      repomanager.RepositoryManager
	revocations      revocations.Repository
	hasher           auth.PasswordHasher
	signer           *auth.Signer
	resets           *auth.ResetTokenIssuer
	notifier         notify.Notifier
	logger           logging.Logger
	metrics          *Metrics
	defaultAvatarURL string
	storeTimeout     time.Duration
	notifierTimeout  time.Duration
	now              func() time.Time
}

func NewAccountService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	rv revocations.Repository,
	n notify.Notifier,
	logger logging.Logger,
	reg prometheus.Registerer,
	cfg *config.Config,
) (*AccountService, error) {
	signer, err := auth.NewSigner(cfg.SecretKey, cfg.SessionTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	return &AccountService{
		db:               db,
		repomanager:      m,
		revocations:      rv,
		hasher:           auth.NewBcryptHasher(cfg.BcryptCost, 0),
		signer:           signer,
		resets:           auth.NewResetTokenIssuer(cfg.ResetTokenValidityDuration),
		notifier:         n,
		logger:           logger.With("component", "account_service"),
		metrics:          NewMetrics(reg),
		defaultAvatarURL: cfg.DefaultAvatarURL,
		storeTimeout:     cfg.StoreTimeout,
		notifierTimeout:  cfg.NotifierTimeout,
		now:              time.Now,
	}, nil
}

// withClock replaces the time source of the service and its token issuers.
func (s *AccountService) withClock(now func() time.Time) {
	s.now = now
	s.signer = s.signer.WithClock(now)
	s.resets = s.resets.WithClock(now)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkPassword rejects passwords bcrypt cannot hash.
func checkPassword(password string) error {
	if password == "" {
		return &common.ValidationError{Msg: "password is required"}
	}
	if len(password) > auth.MaxPasswordBytes {
		return &common.ValidationError{Msg: fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes)}
	}
	return nil
}

// uniqueIDs drops repeated ids, keeping first occurrences in order.
func uniqueIDs(ids []string) []string {
	if len(ids) == 0 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// withTimeout bounds a collaborator call. A zero timeout leaves ctx as is.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

// storeError passes domain errors through and reports anything else as an
// unavailable dependency.
func storeError(operation string, err error) error {
	if errors.Is(err, common.ErrorNotFound) ||
		errors.Is(err, common.ErrConflict) ||
		errors.Is(err, common.ErrValidation) {
		return err
	}
	return oops.Code("DEPENDENCY_UNAVAILABLE").
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", common.ErrDependencyUnavailable, err))
}

func (s *AccountService) interestNames(ctx context.Context, accountID string) ([]string, error) {
	names, err := withTimeout(ctx, s.storeTimeout, func(ctx context.Context) ([]string, error) {
		return s.repomanager.Interests(s.db).NamesForAccount(ctx, accountID)
	})
	if err != nil {
		return nil, storeError("resolve interests", err)
	}
	return names, nil
}

func (s *AccountService) authResult(ctx context.Context, account *models.Account) (*AuthResult, error) {
	names, err := s.interestNames(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	token, err := s.signer.Issue(account.ID)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").With("account_id", account.ID).Wrap(err)
	}

	return &AuthResult{
		Token:           token,
		AccountID:       account.ID,
		DisplayName:     account.DisplayName,
		InterestNames:   names,
		PricePreference: account.PricePreference,
	}, nil
}

// Login checks the password of the account registered under email and
// issues a session token. An unknown email yields common.ErrorNotFound; a
// wrong password yields common.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	defer func(start time.Time) { s.metrics.observe(opLogin, start, err) }(time.Now())

	email = normalizeEmail(email)

	account, err := withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (*models.Account, error) {
		return s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	})
	if err != nil {
		return nil, storeError("find account by email", err)
	}

	if !s.hasher.Verify(ctx, password, account.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	return s.authResult(ctx, account)
}

// Register creates an account and signs it in. The email check happens
// before hashing; a concurrent registration that wins the race still
// surfaces as common.ErrConflict from the store.
func (s *AccountService) Register(ctx context.Context, profile RegisterProfile) (res *AuthResult, err error) {
	defer func(start time.Time) { s.metrics.observe(opRegister, start, err) }(time.Now())

	email := normalizeEmail(profile.Email)
	if email == "" {
		return nil, &common.ValidationError{Msg: "email is required"}
	}
	if err := checkPassword(profile.Password); err != nil {
		return nil, err
	}

	_, err = withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (*models.Account, error) {
		return s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	})
	switch {
	case err == nil:
		return nil, common.ErrConflict
	case !errors.Is(err, common.ErrorNotFound):
		return nil, storeError("check email", err)
	}

	digest, err := s.hasher.Hash(ctx, profile.Password)
	if err != nil {
		return nil, oops.Code("HASHING_FAILED").With("operation", "register").Wrap(err)
	}

	avatar := profile.AvatarURL
	if avatar == "" {
		avatar = s.defaultAvatarURL
	}

	account := &models.Account{
		ID:              uuid.NewString(),
		Email:           email,
		PasswordHash:    digest,
		DisplayName:     profile.DisplayName,
		Age:             profile.Age,
		PricePreference: profile.PricePreference,
		InterestIDs:     uniqueIDs(profile.InterestIDs),
		AvatarURL:       avatar,
	}

	_, err = withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return s.repomanager.Accounts(tx).Create(ctx, account)
		})
	})
	if err != nil {
		return nil, storeError("create account", err)
	}

	s.logger.Info(ctx, "account registered", "account_id", account.ID)

	return s.authResult(ctx, account)
}

// Authenticate verifies a session token and rejects it if the account's
// sessions were terminated after it was issued.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil, err
	}

	type revocation struct {
		at time.Time
		ok bool
	}
	rev, err := withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (revocation, error) {
		at, ok, err := s.revocations.RevokedAt(ctx, claims.AccountID())
		return revocation{at: at, ok: ok}, err
	})
	if err != nil {
		return nil, storeError("check revocation", err)
	}

	if rev.ok && (claims.IssuedAt == nil || !claims.IssuedAt.Time.After(rev.at)) {
		return nil, fmt.Errorf("%w: session terminated", common.ErrInvalidToken)
	}

	return claims, nil
}

// Logout terminates every session of the token's account. Tokens issued at
// or before this instant stop being accepted by Authenticate.
func (s *AccountService) Logout(ctx context.Context, token string) (err error) {
	defer func(start time.Time) { s.metrics.observe(opLogout, start, err) }(time.Now())

	if token == "" {
		return common.ErrUnauthenticated
	}

	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	account, err := withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (*models.Account, error) {
		return s.repomanager.Accounts(s.db).GetByID(ctx, claims.AccountID())
	})
	if err != nil {
		return storeError("find account by id", err)
	}

	_, err = withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.revocations.RevokeAccount(ctx, account.ID, s.now(), s.signer.TTL())
	})
	if err != nil {
		return storeError("revoke sessions", err)
	}

	s.logger.Info(ctx, "sessions terminated", "account_id", account.ID)

	return nil
}

// RequestPasswordReset issues a reset code for the account registered under
// email and sends it to that address. Delivery failures are logged and do
// not fail the call; the stored code stays valid.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer func(start time.Time) { s.metrics.observe(opRequestPasswordReset, start, err) }(time.Now())

	email = normalizeEmail(email)

	account, err := withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (*models.Account, error) {
		return s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	})
	if err != nil {
		return storeError("find account by email", err)
	}

	updated, token, err := s.resets.IssueFor(*account)
	if err != nil {
		return oops.Code("RESET_ISSUE_FAILED").With("account_id", account.ID).Wrap(err)
	}

	_, err = withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repomanager.Accounts(s.db).SaveResetToken(ctx, &updated)
	})
	if err != nil {
		return storeError("save reset token", err)
	}

	msg := notify.NewPasswordResetMessage(updated.Email, token.Code, s.resets.TTL())
	_, sendErr := withTimeout(ctx, s.notifierTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.notifier.Send(ctx, msg)
	})
	if sendErr != nil {
		s.logger.Error(ctx, "reset code delivery failed", "account_id", account.ID, "email", email, "error", sendErr)
	}

	return nil
}

// CompletePasswordReset sets a new password for the account holding code.
// The code must be unexpired and is consumed on success, so it works once.
func (s *AccountService) CompletePasswordReset(ctx context.Context, code, newPassword string) (err error) {
	defer func(start time.Time) { s.metrics.observe(opCompletePasswordReset, start, err) }(time.Now())

	if code == "" {
		return common.ErrInvalidOrExpiredToken
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	now := s.now()

	account, err := withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (*models.Account, error) {
		return s.repomanager.Accounts(s.db).GetByResetToken(ctx, code, now)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpiredToken
		}
		return storeError("find account by reset token", err)
	}

	if !s.resets.Validate(*account, code, now) {
		return common.ErrInvalidOrExpiredToken
	}

	if s.hasher.Verify(ctx, newPassword, account.PasswordHash) {
		return common.ErrSamePassword
	}

	digest, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return oops.Code("HASHING_FAILED").With("operation", "complete password reset").Wrap(err)
	}

	updated := *account
	updated.PasswordHash = digest
	updated = s.resets.Consume(updated)

	_, err = withTimeout(ctx, s.storeTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repomanager.Accounts(s.db).SavePasswordReset(ctx, &updated, code, now)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpiredToken
		}
		return storeError("save password reset", err)
	}

	s.logger.Info(ctx, "password reset completed", "account_id", account.ID)

	return nil
}
