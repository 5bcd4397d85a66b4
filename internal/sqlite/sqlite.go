// Package sqlite wraps the engine-native primitives the backup manager
// depends on: read-only integrity checking and consistent online snapshots.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// Check runs SQLite's built-in consistency check against the database at path.
// It reports ok=true only when the engine answers the canonical "ok"; every
// other outcome, including a file that cannot be opened at all, is reported as
// a diagnostic message. Corruption is an expected result here, not an error,
// so Check never fails with a Go error.
func Check(path string) (bool, string) {
	if _, err := os.Stat(path); err != nil {
		return false, fmt.Sprintf("database file not accessible: %v", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return false, fmt.Sprintf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return false, fmt.Sprintf("integrity check could not run: %v", err)
	}

	if result != "ok" {
		return false, result
	}

	return true, "integrity check passed"
}

// Snapshot copies the database at sourcePath to destPath using VACUUM INTO,
// which produces a consistent point-in-time copy even while the source is
// open for writes and handles WAL mode correctly. destPath must not exist.
func Snapshot(sourcePath, destPath string) error {
	sourceDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", sourcePath))
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer func() { _ = sourceDB.Close() }()

	if err := sourceDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping source database: %w", err)
	}

	if _, err := sourceDB.Exec(fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}

	return nil
}
