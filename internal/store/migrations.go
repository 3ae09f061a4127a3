package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// gooseLogger routes goose output to slog; goose prints to stdout by
// default, which would corrupt an MCP stdio stream.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	slog.Debug("store_migration", slog.String("detail", strings.TrimSpace(fmt.Sprintf(format, v...))))
}

func (gooseLogger) Fatalf(format string, v ...any) {
	slog.Error("store_migration_fatal", slog.String("detail", strings.TrimSpace(fmt.Sprintf(format, v...))))
}

// migrate applies the embedded migrations for dialect ("sqlite" or "postgres").
func migrate(ctx context.Context, db *sql.DB, d dialect) error {
	sub, err := fs.Sub(migrationFS, "migrations/"+d.name)
	if err != nil {
		return fmt.Errorf("migrations for %s: %w", d.name, err)
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect(d.gooseDialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate %s: %w", d.name, err)
	}
	return nil
}
