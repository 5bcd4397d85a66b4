package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenCreatesDefaultDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_metadata.json")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.Records()) != 0 {
		t.Errorf("expected empty catalog, got %d records", len(store.Records()))
	}
	if store.LastFull() != nil {
		t.Error("expected no last full backup marker")
	}
	if sched := store.Schedule(); sched != DefaultSchedule() {
		t.Errorf("expected default schedule, got %+v", sched)
	}

	// The default document must be persisted immediately.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected metadata file on disk: %v", err)
	}
}

func TestAppendPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_metadata.json")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := Record{
		Name:              "backup_manual_20250101_020000",
		Type:              TypeManual,
		Timestamp:         time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC),
		FilePath:          "/tmp/backups/backup_manual_20250101_020000.db.gz",
		FileSize:          512,
		OriginalSize:      4096,
		Compressed:        true,
		Hash:              "abc123",
		IntegrityVerified: true,
		SourceDBPath:      "/tmp/live.db",
	}
	if err := store.Append(rec); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	records := reloaded.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record after reload, got %d", len(records))
	}
	if records[0] != rec {
		t.Errorf("record did not survive round trip: %+v", records[0])
	}
}

func TestAppendFullAdvancesMarker(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "backup_metadata.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ts := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	if err := store.Append(Record{Name: "backup_full_20250601_030000", Type: TypeFull, Timestamp: ts}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	marker := store.LastFull()
	if marker == nil || !marker.Equal(ts) {
		t.Errorf("expected last full marker %v, got %v", ts, marker)
	}

	// A manual backup must not move the marker.
	if err := store.Append(Record{Name: "backup_manual_20250602_030000", Type: TypeManual, Timestamp: ts.Add(24 * time.Hour)}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if marker := store.LastFull(); marker == nil || !marker.Equal(ts) {
		t.Errorf("manual backup moved the full marker to %v", marker)
	}
}

func TestRemove(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "backup_metadata.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"a", "b", "c"} {
		if err := store.Append(Record{Name: name, Type: TypeDaily, Timestamp: time.Now()}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	if err := store.Remove("a", "c"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	records := store.Records()
	if len(records) != 1 || records[0].Name != "b" {
		t.Errorf("expected only record b to remain, got %+v", records)
	}

	if _, found := store.Find("a"); found {
		t.Error("removed record still findable")
	}
}

func TestRemoveRecomputesFullMarker(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "backup_metadata.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	older := time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC)
	newer := older.Add(30 * 24 * time.Hour)
	if err := store.Append(Record{Name: "backup_full_20250501_030000", Type: TypeFull, Timestamp: older}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append(Record{Name: "backup_full_20250531_030000", Type: TypeFull, Timestamp: newer}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// dropping the newest full backup falls back to the older one
	if err := store.Remove("backup_full_20250531_030000"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if marker := store.LastFull(); marker == nil || !marker.Equal(older) {
		t.Errorf("expected marker to fall back to %v, got %v", older, marker)
	}

	// dropping the last full backup clears the marker
	if err := store.Remove("backup_full_20250501_030000"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if marker := store.LastFull(); marker != nil {
		t.Errorf("expected no marker after removing all full backups, got %v", marker)
	}
}

func TestDocumentShapeOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_metadata.json")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Append(Record{Name: "x", Type: TypeDaily, Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read metadata file: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("metadata file is not valid JSON: %v", err)
	}
	for _, key := range []string{"backups", "last_full_backup", "backup_schedule"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("expected key %q in persisted document", key)
		}
	}
}
