package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/repository/sqlstore"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"github.com/jessevdk/go-flags"
)

type config struct {
	SQLiteDSN string `long:"sqlite-dsn" env:"MIGRATIONS_SQLITE_DSN" default:"chainstore.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" description:"SQLite DSN"`
}

func main() {
	cfg := config{}
	if _, err := flags.Parse(&cfg); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		log.Fatalf("failed to parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(ctx, cfg); err != nil {
		log.Fatalf("migration run failed: %v", err)
	}
}

func runMigrations(ctx context.Context, cfg config) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db, err := sqlstore.Open(cfg.SQLiteDSN)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}()

	if err := schema.AutoMigrate(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	log.Println("migrations applied successfully")
	return nil
}
