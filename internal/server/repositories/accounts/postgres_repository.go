package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const selectAccount = `SELECT id, email, password, display_name, age, price_preference,
		avatar_url, reset_password_token, reset_password_expires, created_at
	 FROM users
	`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) error {
	query :=
		`INSERT INTO users (id, email, password, display_name, age, price_preference, avatar_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.DisplayName,
		nullInt(account.Age), nullInt(account.PricePreference), account.AvatarURL,
	).Scan(&account.CreatedAt)
	if err != nil {
		return classify(err)
	}

	for i, interestID := range account.InterestIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO user_interests (user_id, interest_id, position) VALUES ($1, $2, $3)`,
			account.ID, interestID, i)
		if err != nil {
			return classify(err)
		}
	}

	return nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, selectAccount+`WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, selectAccount+`WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (*models.Account, error) {
	return r.getOne(ctx, selectAccount+`WHERE reset_password_token = $1 AND reset_password_expires > $2`, token, now)
}

func (r *PostgresRepository) SaveResetToken(ctx context.Context, account *models.Account) error {
	query :=
		`UPDATE users SET reset_password_token = $2, reset_password_expires = $3
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, account.ID, account.ResetToken, account.ResetTokenExpires)
	if err != nil {
		return classify(err)
	}

	return dbx.RequireAffected(res)
}

func (r *PostgresRepository) SavePasswordReset(ctx context.Context, account *models.Account, expectedToken string, now time.Time) error {
	query :=
		`UPDATE users SET password = $2, reset_password_token = $3, reset_password_expires = $4
		 WHERE id = $1 AND reset_password_token = $5 AND reset_password_expires > $6
		 `

	res, err := r.db.ExecContext(ctx, query,
		account.ID, account.PasswordHash, account.ResetToken, account.ResetTokenExpires, expectedToken, now)
	if err != nil {
		return classify(err)
	}

	return dbx.RequireAffected(res)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Account, error) {
	var (
		a       models.Account
		age     sql.NullInt64
		price   sql.NullInt64
		token   sql.NullString
		expires sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &age, &price,
		&a.AvatarURL, &token, &expires, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if age.Valid {
		v := int(age.Int64)
		a.Age = &v
	}
	if price.Valid {
		v := int(price.Int64)
		a.PricePreference = &v
	}
	if token.Valid && expires.Valid {
		a.ResetToken = &token.String
		a.ResetTokenExpires = &expires.Time
	}

	return &a, nil
}

// emailUniqueConstraint is the index guarding one account per address.
const emailUniqueConstraint = "users_email_key"

// classify maps constraint violations to domain errors and wraps the rest.
// Only a clash on the email index is a conflict; other unique violations
// come from bad input.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			if pgErr.ConstraintName == emailUniqueConstraint {
				return fmt.Errorf("%w: %s", common.ErrConflict, pgErr.ConstraintName)
			}
			return &common.ValidationError{Msg: pgErr.Message}
		case pgerrcode.NotNullViolation,
			pgerrcode.CheckViolation,
			pgerrcode.ForeignKeyViolation,
			pgerrcode.InvalidTextRepresentation:
			return &common.ValidationError{Msg: pgErr.Message}
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
