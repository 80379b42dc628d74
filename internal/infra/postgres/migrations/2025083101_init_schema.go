package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_init_schema.sql
var initSchemaSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(initSchemaSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS score_events;
				DROP TABLE IF EXISTS buzzer_attempts;
				DROP TABLE IF EXISTS question_states;
				DROP TABLE IF EXISTS questions;
				DROP TABLE IF EXISTS lobby_participants;
				DROP TABLE IF EXISTS lobbies;
				DROP TABLE IF EXISTS users;
			`)
			return err
		},
	)
}
