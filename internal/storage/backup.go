package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backup errors.
var (
	ErrBackupExists    = errors.New("backup already exists")
	ErrBackupCorrupted = errors.New("backup integrity check failed")
)

// Backup writes a consistent copy of the database into dir and returns its
// path. It is taken before any direct write so a bad run can be rolled back
// by copying the file over the original while the recipe manager is stopped.
func (s *Store) Backup(ctx context.Context, dir string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(dir, "dir"); err != nil {
		return "", err
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve backup directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.db",
		strings.TrimSuffix(filepath.Base(s.dbPath), filepath.Ext(s.dbPath)),
		time.Now().UTC().Format("20060102-150405"),
	)
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%w: %s", ErrBackupExists, dest)
	}

	// VACUUM INTO takes a literal; reject anything that could break out of it.
	if strings.ContainsAny(dest, `'";`) {
		return "", fmt.Errorf("invalid backup path %q: contains forbidden characters", dest)
	}
	if !filepath.IsAbs(dest) || strings.Contains(dest, "..") {
		return "", fmt.Errorf("invalid backup path %q", dest)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// #nosec G201 - dest is validated above
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return "", mapLockError(fmt.Errorf("failed to back up database: %w", err))
	}

	if err := verifyIntegrity(ctx, dest); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil {
			slog.Error("failed to remove corrupt backup", "path", dest, "error", rmErr)
		}
		return "", fmt.Errorf("%w: %w", ErrBackupCorrupted, err)
	}

	slog.Info("Backed up recipe database", "path", dest)
	return dest, nil
}

func verifyIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close backup", "error", err)
		}
	}()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}
