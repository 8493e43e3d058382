// Package storage is the direct backend: it reads and annotates the recipe
// manager's SQLite database in place.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/mattn/go-sqlite3"
)

// DefaultBusyTimeout is how long a write waits for a competing lock.
const DefaultBusyTimeout = 5 * time.Second

// Options configures how the database is opened.
type Options struct {
	BusyTimeout time.Duration
	// ReadOnly opens the file with mode=ro; every write is refused.
	ReadOnly bool
}

// Store implements service.Source on top of the recipe manager's database.
type Store struct {
	db       *sql.DB
	dbPath   string
	writeMu  sync.Mutex
	readOnly bool
}

// Open connects to an existing database and verifies its schema.
// Connection failures wrap common.ErrConnection and an unexpected schema
// wraps common.ErrSchemaMismatch; both are fatal for the run.
func Open(ctx context.Context, dbPath string, opts Options) (*Store, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: database %s: %w", common.ErrConnection, dbPath, err)
	}

	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}

	// Journal mode belongs to the recipe manager; leave it alone.
	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprint(opts.BusyTimeout.Milliseconds()))
	if opts.ReadOnly {
		params.Set("mode", "ro")
	} else {
		params.Set("mode", "rw")
		params.Set("_txlock", "immediate")
	}
	dsn := "file:" + dbPath + "?" + params.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", common.ErrConnection, err)
	}

	// A single connection makes this process a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", common.ErrConnection, err)
	}

	s := &Store{db: db, dbPath: dbPath, readOnly: opts.ReadOnly}
	if err := s.verifySchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Debug("Opened recipe database", "path", dbPath, "read_only", opts.ReadOnly)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name identifies the backend.
func (s *Store) Name() string {
	if s.readOnly {
		return "direct-readonly"
	}
	return "direct"
}

// DirectWrites reports whether writes go straight to the database file.
func (s *Store) DirectWrites() bool {
	return !s.readOnly
}

// ReadOnly reports whether the store refuses writes.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// ProbeWriteLock takes and releases the database write lock. A database held
// by another writer fails with common.ErrLockConflict.
func (s *Store) ProbeWriteLock(ctx context.Context) error {
	if s.readOnly {
		return common.ErrReadOnly
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// _txlock=immediate makes BEGIN take the RESERVED lock right away.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapLockError(err)
	}
	return tx.Rollback()
}

// withTx runs fn inside a single immediate write transaction.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if s.readOnly {
		return common.ErrReadOnly
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapLockError(err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("failed to rollback transaction", "error", rbErr)
		}
		return mapLockError(err)
	}

	if err := tx.Commit(); err != nil {
		return mapLockError(err)
	}
	return nil
}

// mapLockError turns SQLite busy/locked errors into common.ErrLockConflict.
func mapLockError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %w", common.ErrLockConflict, err)
		}
	}
	return err
}
