package interests

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) NamesForAccount(ctx context.Context, accountID string) ([]string, error) {
	query :=
		`SELECT i.name FROM user_interests ui
		 JOIN interests i ON i.id = ui.interest_id
		 WHERE ui.user_id = $1
		 ORDER BY ui.position
		 `

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return names, nil
}
