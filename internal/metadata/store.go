// Package metadata persists the backup catalog as a single JSON document
// kept alongside the backup artifacts. The document is loaded once when the
// store is opened and rewritten in full after every mutation; it is owned by
// a single manager instance and guarded by a mutex within the process.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// BackupType tags a backup record with what triggered it.
type BackupType string

const (
	TypeManual    BackupType = "manual"
	TypeDaily     BackupType = "daily"
	TypeWeekly    BackupType = "weekly"
	TypeMonthly   BackupType = "monthly"
	TypeFull      BackupType = "full"
	TypeEmergency BackupType = "emergency"
	TypeScheduled BackupType = "scheduled"
)

// ValidType reports whether t is one of the known backup types.
func ValidType(t BackupType) bool {
	switch t {
	case TypeManual, TypeDaily, TypeWeekly, TypeMonthly, TypeFull, TypeEmergency, TypeScheduled:
		return true
	}
	return false
}

// Record describes one backup artifact on disk.
type Record struct {
	Name      string     `json:"name"`
	Type      BackupType `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	FilePath  string     `json:"file_path"`

	// FileSize is the stored artifact size, after compression when compressed.
	FileSize     int64 `json:"file_size"`
	OriginalSize int64 `json:"original_size"`
	Compressed   bool  `json:"compressed"`
	Encrypted    bool  `json:"encrypted,omitempty"`

	// Hash is the SHA-256 of the uncompressed, unencrypted backup content,
	// computed before compression. Restore verification decompresses first
	// and compares against this value.
	Hash string `json:"hash"`

	IntegrityVerified bool   `json:"integrity_verified"`
	SourceDBPath      string `json:"source_db_path"`
}

// Schedule holds the automated backup schedule configuration.
type Schedule struct {
	// Daily is the time of day for the daily job, in "HH:MM".
	Daily string `json:"daily" koanf:"daily"`
	// Weekly is the weekday name for the weekly job, e.g. "Sunday".
	Weekly string `json:"weekly" koanf:"weekly"`
	// Monthly is the day of month for the monthly job.
	Monthly int `json:"monthly" koanf:"monthly"`
}

// Validate checks that all schedule fields are usable.
func (s Schedule) Validate() error {
	if _, _, err := ParseClock(s.Daily); err != nil {
		return err
	}
	if _, err := ParseWeekday(s.Weekly); err != nil {
		return err
	}
	if s.Monthly < 1 || s.Monthly > 28 {
		return fmt.Errorf("monthly day must be between 1 and 28, got %d", s.Monthly)
	}
	return nil
}

// ParseClock parses a "HH:MM" time of day.
func ParseClock(clock string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q, expected HH:MM", clock)
	}
	return t.Hour(), t.Minute(), nil
}

// ParseWeekday parses an English weekday name such as "Sunday".
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(name, d.String()) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", name)
}

// DefaultSchedule returns the schedule used when no document exists yet.
func DefaultSchedule() Schedule {
	return Schedule{
		Daily:   "02:00",
		Weekly:  "Sunday",
		Monthly: 1,
	}
}

// Document is the persisted shape of the metadata file.
type Document struct {
	Backups        []Record   `json:"backups"`
	LastFullBackup *time.Time `json:"last_full_backup"`
	Schedule       Schedule   `json:"backup_schedule"`
}

// Store owns the metadata document and its on-disk copy.
type Store struct {
	path string

	mu  sync.RWMutex
	doc Document
}

// Open loads the metadata document at path, creating a default document (and
// persisting it) when the file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path) // #nosec G304 - controlled metadata path
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read metadata file: %w", err)
		}
		s.doc = Document{
			Backups:  []Record{},
			Schedule: DefaultSchedule(),
		}
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("failed to parse metadata file: %w", err)
	}
	if s.doc.Backups == nil {
		s.doc.Backups = []Record{}
	}

	return s, nil
}

// Path returns the location of the metadata file on disk.
func (s *Store) Path() string {
	return s.path
}

// Records returns a copy of all backup records in insertion order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.doc.Backups))
	copy(out, s.doc.Backups)
	return out
}

// Find returns the record with the given name.
func (s *Store) Find(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.doc.Backups {
		if rec.Name == name {
			return rec, true
		}
	}
	return Record{}, false
}

// Append adds a record and persists the document. A full backup also advances
// the last-full-backup marker.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Backups = append(s.doc.Backups, rec)
	if rec.Type == TypeFull {
		ts := rec.Timestamp
		s.doc.LastFullBackup = &ts
	}
	return s.save()
}

// Remove drops the named records and persists the document once.
func (s *Store) Remove(names ...string) error {
	if len(names) == 0 {
		return nil
	}

	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.doc.Backups[:0]
	for _, rec := range s.doc.Backups {
		if !drop[rec.Name] {
			kept = append(kept, rec)
		}
	}
	s.doc.Backups = kept
	s.doc.LastFullBackup = lastFullOf(s.doc.Backups)
	return s.save()
}

// lastFullOf returns the newest full-backup timestamp among recs, or nil.
func lastFullOf(recs []Record) *time.Time {
	var last *time.Time
	for i := range recs {
		if recs[i].Type != TypeFull {
			continue
		}
		ts := recs[i].Timestamp
		if last == nil || ts.After(*last) {
			last = &ts
		}
	}
	return last
}

// LastFull returns the timestamp of the most recent full backup, or nil.
func (s *Store) LastFull() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc.LastFullBackup == nil {
		return nil
	}
	ts := *s.doc.LastFullBackup
	return &ts
}

// Schedule returns the current schedule configuration.
func (s *Store) Schedule() Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Schedule
}

// SetSchedule replaces the schedule configuration and persists the document.
// A running scheduler does not pick the change up until restarted.
func (s *Store) SetSchedule(sched Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Schedule = sched
	return s.save()
}

// save writes the document, pretty-printed, to disk. Callers must hold mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}
