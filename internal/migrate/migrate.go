// Package migrate applies the embedded SQL migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/jmehdipour/outline-admin/migrations"
)

// Target selects a migration directory and the goose dialect that runs it.
type Target struct {
	Dir     string
	Dialect string
}

var (
	MySQL      = Target{Dir: "mysql", Dialect: "mysql"}
	ClickHouse = Target{Dir: "clickhouse", Dialect: "clickhouse"}
)

// Up runs all pending migrations of t against db.
func Up(ctx context.Context, db *sql.DB, t Target) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(t.Dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, t.Dir); err != nil {
		return fmt.Errorf("migrate %s: %w", t.Dir, err)
	}
	return nil
}

// Down rolls back the latest migration of t.
func Down(ctx context.Context, db *sql.DB, t Target) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(t.Dialect); err != nil {
		return err
	}
	return goose.DownContext(ctx, db, t.Dir)
}

// Version reports the applied version of t.
func Version(ctx context.Context, db *sql.DB, t Target) (int64, error) {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(t.Dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
