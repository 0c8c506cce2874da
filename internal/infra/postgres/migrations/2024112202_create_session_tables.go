package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0002_create_session_tables.sql
var createSessionTablesSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createSessionTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS session_results;
				DROP TABLE IF EXISTS session_answers;
				DROP TABLE IF EXISTS session_participants;
				DROP TABLE IF EXISTS sessions;
				DROP TABLE IF EXISTS users;`)
			return err
		},
	)
}
