package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codejudge/internal/platform/config"
	"codejudge/internal/platform/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

var DB *sql.DB

func Connect() error {
	log := logger.NewNamedLogger("database")

	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = DB.PingContext(ctx); err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	log.Infof("Connected to PostgreSQL at %s:%s/%s", config.AppConfig.DBHost, config.AppConfig.DBPort, config.AppConfig.DBName)
	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
		logger.NewNamedLogger("database").Info("Database connection closed")
	}
}

// TxRunner runs fn inside a single transaction. It is the seam services use
// for multi-statement writes so tests can swap in a fake.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type sqlTxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
