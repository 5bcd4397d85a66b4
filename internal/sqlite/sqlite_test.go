package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

// newTestDB creates a small SQLite database with a few rows.
func newTestDB(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(`CREATE TABLE entries (id INTEGER PRIMARY KEY, body TEXT NOT NULL)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO entries (body) VALUES ('one'), ('two'), ('three')`); err != nil {
		t.Fatalf("failed to insert rows: %v", err)
	}
}

func TestCheckValidDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "valid.db")
	newTestDB(t, dbPath)

	ok, msg := Check(dbPath)
	if !ok {
		t.Fatalf("expected valid database to pass, got: %s", msg)
	}
}

func TestCheckMissingFile(t *testing.T) {
	ok, msg := Check(filepath.Join(t.TempDir(), "missing.db"))
	if ok {
		t.Fatal("expected missing file to fail the check")
	}
	if msg == "" {
		t.Error("expected a diagnostic message")
	}
}

func TestCheckGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database at all"), 0o644); err != nil {
		t.Fatalf("failed to write garbage file: %v", err)
	}

	// A corrupt file must be reported, never panicked or errored on.
	ok, msg := Check(path)
	if ok {
		t.Fatalf("expected garbage file to fail the check, got: %s", msg)
	}
}

func TestSnapshotProducesValidCopy(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "source.db")
	dst := filepath.Join(tmpDir, "copy.db")
	newTestDB(t, src)

	if err := Snapshot(src, dst); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	ok, msg := Check(dst)
	if !ok {
		t.Fatalf("snapshot did not pass integrity check: %s", msg)
	}

	db, err := sql.Open("sqlite", dst)
	if err != nil {
		t.Fatalf("failed to open snapshot: %v", err)
	}
	defer func() { _ = db.Close() }()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 rows in snapshot, got %d", count)
	}
}

func TestSnapshotMissingSource(t *testing.T) {
	tmpDir := t.TempDir()
	err := Snapshot(filepath.Join(tmpDir, "nope.db"), filepath.Join(tmpDir, "out.db"))
	if err == nil {
		t.Fatal("expected error for missing source database")
	}
}
