package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_catalog.sql
var createCatalogSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createCatalogSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS quiz_performance;
				DROP TABLE IF EXISTS paper_questions;
				DROP TABLE IF EXISTS papers;
				DROP TABLE IF EXISTS quizzes;
				DROP TABLE IF EXISTS questions;
				DROP TABLE IF EXISTS class_enrollments;
				DROP TABLE IF EXISTS classes;
				DROP TABLE IF EXISTS users;
			`)
			return err
		},
	)
}
