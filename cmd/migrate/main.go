package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"hostel-hub.backend/internal/config"
	"hostel-hub.backend/internal/infrastructure/datasources/migrations"
	"hostel-hub.backend/internal/infrastructure/datasources/postgres"
)

const usage = "usage: migrate up|down|status"

type migrateDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	open    func(cfg config.DatabaseConfig) (*sql.DB, goose.Dialect, error)
	out     io.Writer
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, goose.Dialect, error) {
	if !cfg.IsSQLite() {
		db, err := postgres.NewConnection(cfg)
		return db, migrations.DialectPostgres, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", err
		}
	}
	gdb, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
	if err != nil {
		return nil, "", err
	}
	db, err := gdb.DB()
	return db, migrations.DialectSQLite, err
}

func defaultMigrateDeps() migrateDeps {
	return migrateDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		open:    openDatabase,
		out:     os.Stdout,
	}
}

func run(ctx context.Context, args []string, deps migrateDeps) error {
	if len(args) != 1 {
		return errors.New(usage)
	}
	command := args[0]
	switch command {
	case "up", "down", "status":
	default:
		return fmt.Errorf("unknown command %q, %s", command, usage)
	}

	_ = deps.loadEnv()
	cfg := deps.loadCfg()

	db, dialect, err := deps.open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := migrations.Up(ctx, db, dialect); err != nil {
			return err
		}
		fmt.Fprintln(deps.out, "migrations applied")
	case "down":
		if err := migrations.Down(ctx, db, dialect); err != nil {
			return err
		}
		fmt.Fprintln(deps.out, "rolled back one migration")
	case "status":
		statuses, err := migrations.Statuses(ctx, db, dialect)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Fprintf(deps.out, "%05d %-8s %s\n", s.Version, state, s.Path)
		}
	}
	return nil
}

func main() {
	if err := run(context.Background(), os.Args[1:], defaultMigrateDeps()); err != nil {
		log.Fatal(err)
	}
}
