// Package config builds the execution context of a run from flags, config
// files and the environment.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/spf13/viper"
)

// DatabaseFile is the name Mealie gives its SQLite file inside the data
// directory.
const DatabaseFile = "mealie.db"

// expandPath resolves a path setting. A leading ~ is the home directory and
// $VAR references are substituted; empty stays empty.
func expandPath(key, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", common.NewConfigError(key, "cannot expand ~: %v", err)
		}
		path = home + path[1:]
	}
	return filepath.Clean(os.ExpandEnv(path)), nil
}

// databasePath resolves database.path. Pointing it at Mealie's data
// directory selects the database file inside.
func databasePath(path string) (string, error) {
	path, err := expandPath("database.path", path)
	if err != nil || path == "" {
		return path, err
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, DatabaseFile), nil
	}
	return path, nil
}

// loadPaths fills the file settings of ec from v.
func loadPaths(v *viper.Viper, ec *ExecutionContext) error {
	var err error
	if ec.DBPath, err = databasePath(v.GetString("database.path")); err != nil {
		return err
	}
	for key, dst := range map[string]*string{
		"database.backup_dir": &ec.BackupDir,
		"rules.path":          &ec.RulesPath,
		"metrics.file":        &ec.MetricsFile,
	} {
		if *dst, err = expandPath(key, v.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}
