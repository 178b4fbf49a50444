package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

// Executor is the query surface shared by the pooled database and an open
// transaction. Repositories run against whichever the context supplies, so
// the same repository code serves both the import transaction and plain
// reads.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

// DB is the database handle used across the store.
type DB interface {
	Executor
	PingContext(ctx context.Context) error
	Close() error
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error)
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
}

// Config holds the connection settings applied by Connect.
type Config struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens and pings the database described by cfg.
func Connect(ctx context.Context, cfg Config, logger ectologger.Logger) (*DatabaseInstance, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithFields(map[string]any{"host": cfg.Host, "name": cfg.Name}).Info("connected to database")

	return &DatabaseInstance{DB: db, logger: logger}, nil
}

func (db *DatabaseInstance) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error) {
	return GetTx(ctx, db.logger, db, opts)
}

// RunInTx runs fn inside a transaction carried on the context. Repositories
// invoked from fn join the same transaction through ExecutorFromContext.
// Any error from fn rolls everything back; the transaction commits only if
// fn returns nil.
func (db *DatabaseInstance) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, tx, err := GetTx(ctx, db.logger, db, nil)
	if err != nil {
		return err
	}

	if err := fn(txCtx); err != nil {
		// Rollback with the parent context: the tx-open marker on txCtx
		// reserves closing for the owner, which is us.
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			db.logger.WithContext(ctx).WithError(rbErr).Error("failed to roll back transaction")
		}
		return err
	}

	return tx.Commit(ctx)
}
