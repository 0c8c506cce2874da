package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
)

// UserDirectory provisions guest users keyed by display name.
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

func (d *UserDirectory) FindOrCreateByDisplayName(ctx context.Context, name string) (string, error) {
	var id string
	err := d.pool.QueryRow(ctx, `
		INSERT INTO users (id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (display_name)
		DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING id`,
		uuid.NewString(), name).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("find or create user: %w", err)
	}
	return id, nil
}
