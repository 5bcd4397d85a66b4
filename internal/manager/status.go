package manager

import (
	"os"
	"time"

	"github.com/litevault/litevault/internal/metadata"
)

// Status is the aggregate state of the backup system. It is a pure read; a
// corrupt live database shows up as a field value, never as a failure.
type Status struct {
	TotalBackups   int            `json:"total_backups"`
	CountsByType   map[string]int `json:"counts_by_type"`
	TotalSizeBytes int64          `json:"total_size_bytes"`

	LatestBackup         *metadata.Record `json:"latest_backup,omitempty"`
	HoursSinceLastBackup *float64         `json:"hours_since_last_backup,omitempty"`
	LastFullBackup       *time.Time       `json:"last_full_backup"`

	DatabaseExists           bool   `json:"database_exists"`
	DatabaseSizeBytes        int64  `json:"database_size_bytes"`
	DatabaseIntegrityOK      bool   `json:"database_integrity_ok"`
	DatabaseIntegrityMessage string `json:"database_integrity_message"`

	Schedule         metadata.Schedule `json:"backup_schedule"`
	SchedulerRunning bool              `json:"scheduler_running"`
}

// Status reports the current backup state, including a fresh integrity
// check of the live database.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.store.Records()

	st := Status{
		TotalBackups:     len(records),
		CountsByType:     map[string]int{},
		LastFullBackup:   m.store.LastFull(),
		Schedule:         m.store.Schedule(),
		SchedulerRunning: m.schedulerRunning(),
	}

	var latest *metadata.Record
	for i := range records {
		rec := records[i]
		st.CountsByType[string(rec.Type)]++
		st.TotalSizeBytes += rec.FileSize
		if latest == nil || rec.Timestamp.After(latest.Timestamp) {
			latest = &records[i]
		}
	}
	if latest != nil {
		st.LatestBackup = latest
		hours := m.now().Sub(latest.Timestamp).Hours()
		st.HoursSinceLastBackup = &hours
	}

	if info, err := os.Stat(m.opts.DBPath); err == nil {
		st.DatabaseExists = true
		st.DatabaseSizeBytes = info.Size()
	}
	st.DatabaseIntegrityOK, st.DatabaseIntegrityMessage = m.checkFn(m.opts.DBPath)

	return st
}
