// Package sqlitepath finds the SQLite database used by ntree commands when
// none is configured.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const dbName = "ntree.db"

// ErrNotFound is returned when no candidate database exists.
var ErrNotFound = errors.New("could not find ntree SQLite database; pass --sqlite")

// ResolveSQLitePath returns override when set, then $NTREE_DB, then the first
// existing database among the well known locations.
func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("NTREE_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", ErrNotFound
}

// DefaultPath is where a new database is created: inside dir when it is set,
// otherwise in the current directory.
func DefaultPath(dir string) string {
	if dir == "" {
		return dbName
	}
	return filepath.Join(dir, dbName)
}

func sqliteCandidates() []string {
	candidates := []string{
		filepath.Join(".ntree", dbName),
		dbName,
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".ntree", dbName))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "ntree", dbName))
	}

	return candidates
}
