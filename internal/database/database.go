// Package database opens the relational store of the contact book, applies
// the schema migrations and provides the transaction helper and driver error
// mapping shared by the stores.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// migrations holds one goose migration directory per supported driver.
//
//go:embed migrations
var migrations embed.FS

// mysqlDuplicateEntry is the MySQL server error ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// sqliteDriver is the go-sqlite3 driver with a LOWER that folds all of
// Unicode instead of ASCII only. Search compares against strings.ToLower, so
// both sides have to fold the same way.
const sqliteDriver = "sqlite3_unicode"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", strings.ToLower, true)
		},
	})
}

// migrateMu serializes migrations, goose keeps its settings in package state.
var migrateMu sync.Mutex

// Open connects to the database with the given driver ("mysql" or "sqlite3")
// and verifies the connection.
func Open(ctx context.Context, driver string, dsn string) (*sqlx.DB, error) {
	name := driver
	if driver == "sqlite3" {
		name = sqliteDriver
	}
	sqlDB, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	// The driver name of the handle stays "sqlite3" for the bind type and the
	// goose dialect.
	db := sqlx.NewDb(sqlDB, driver)
	if driver == "sqlite3" {
		// SQLite allows a single writer; one connection also keeps a shared
		// in-memory database alive for the lifetime of the pool.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	return db, nil
}

// Migrate applies all pending migrations for the driver of db.
func Migrate(ctx context.Context, db *sqlx.DB, log *zap.Logger) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log.Sugar()})
	if err := goose.SetDialect(db.DriverName()); err != nil {
		return fmt.Errorf("migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations/"+db.DriverName()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// gooseLogger routes the progress output of goose into zap.
type gooseLogger struct {
	*zap.SugaredLogger
}

// Printf logs a goose progress line at info level.
func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.Infof(format, v...)
}

// WithTx begins a transaction, runs fn with it, and then commits on success or
// rolls back on error or panic. Panics are rethrown.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context, tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// IsUniqueViolation reports whether err was raised by a unique index of either
// supported driver.
func IsUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
