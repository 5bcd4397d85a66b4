package scheduler

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"
	_ "modernc.org/sqlite"

	"github.com/litevault/litevault/internal/manager"
	"github.com/litevault/litevault/internal/metadata"
)

func newTestManager(t *testing.T, mutate func(*manager.Options)) *manager.Manager {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE entries (id INTEGER PRIMARY KEY, body TEXT);
		INSERT INTO entries (body) VALUES ('one'), ('two')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	opts := manager.Options{
		DBPath:    dbPath,
		BackupDir: filepath.Join(dir, "backups"),
		Compress:  false,
		Quiet:     true,
		Logger:    zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	mgr, err := manager.New(opts)
	require.NoError(t, err)
	return mgr
}

func TestDue(t *testing.T) {
	base := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		now    time.Time
		last   time.Time
		target time.Time
		want   bool
	}{
		{"exactly at target, never fired", base, time.Time{}, base, true},
		{"past target, never fired", base.Add(45 * time.Second), time.Time{}, base, true},
		{"before target", base.Add(-time.Minute), time.Time{}, base, false},
		{"already fired this occurrence", base.Add(90 * time.Second), base.Add(30 * time.Second), base, false},
		{"fired yesterday, due again today", base, base.Add(-24 * time.Hour), base, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, due(tt.now, tt.last, tt.target))
		})
	}
}

func TestOccurrenceToday(t *testing.T) {
	now := time.Date(2025, 6, 15, 17, 42, 11, 0, time.UTC)
	got := occurrenceToday(now, 2, 30)
	assert.Equal(t, time.Date(2025, 6, 15, 2, 30, 0, 0, time.UTC), got)
}

func TestTickFiresDueJobsOnce(t *testing.T) {
	mgr := newTestManager(t, nil)
	s := New(mgr, zerolog.Nop())

	// Sunday June 1st at 02:00:30 hits the default daily, weekly and
	// monthly schedules at once.
	now := time.Date(2025, 6, 1, 2, 0, 30, 0, time.Local)
	s.now = func() time.Time { return now }

	s.tick()

	types := map[metadata.BackupType]int{}
	for _, rec := range mgr.Store().Records() {
		types[rec.Type]++
	}
	assert.Equal(t, 1, types[metadata.TypeDaily])
	assert.Equal(t, 1, types[metadata.TypeWeekly])
	assert.Equal(t, 1, types[metadata.TypeMonthly])

	// same occurrence, nothing new fires
	now = now.Add(time.Minute)
	s.tick()
	assert.Len(t, mgr.Store().Records(), 3)
}

func TestTickBeforeScheduleDoesNothing(t *testing.T) {
	mgr := newTestManager(t, nil)
	s := New(mgr, zerolog.Nop())

	s.now = func() time.Time {
		return time.Date(2025, 6, 2, 1, 59, 0, 0, time.Local)
	}
	s.tick()

	assert.Empty(t, mgr.Store().Records())
}

func TestStartStopIdempotent(t *testing.T) {
	mgr := newTestManager(t, nil)
	s := New(mgr, zerolog.Nop())

	assert.False(t, s.Running())

	s.Start()
	assert.True(t, s.Running())
	s.Start() // no-op
	assert.True(t, s.Running())

	s.Stop()
	assert.False(t, s.Running())
	s.Stop() // no-op
	assert.False(t, s.Running())
}

func TestTickHonoursStoredSchedule(t *testing.T) {
	mgr := newTestManager(t, func(opts *manager.Options) {
		opts.Schedule = metadata.Schedule{Daily: "14:30", Weekly: "Tuesday", Monthly: 15}
	})
	s := New(mgr, zerolog.Nop())

	// 02:00 would satisfy the default schedule but not the configured one.
	now := time.Date(2025, 6, 3, 2, 0, 30, 0, time.Local) // a Tuesday
	s.now = func() time.Time { return now }
	s.tick()
	assert.Empty(t, mgr.Store().Records())

	now = time.Date(2025, 6, 3, 14, 30, 30, 0, time.Local)
	s.tick()

	types := map[metadata.BackupType]int{}
	for _, rec := range mgr.Store().Records() {
		types[rec.Type]++
	}
	assert.Equal(t, 1, types[metadata.TypeDaily])
	assert.Equal(t, 1, types[metadata.TypeWeekly])
	assert.Zero(t, types[metadata.TypeMonthly])
}

func TestServeThenStop(t *testing.T) {
	mgr := newTestManager(t, nil)
	s := New(mgr, zerolog.Nop())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(context.Background()) }()

	require.Eventually(t, s.Running, time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, suture.ErrDoNotRestart)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Stop")
	}

	s.Stop() // no-op
}

func TestServeStopsOnContextCancel(t *testing.T) {
	mgr := newTestManager(t, nil)
	s := New(mgr, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx) }()

	require.Eventually(t, s.Running, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.False(t, s.Running())
}

func TestRunningProbeReachesStatus(t *testing.T) {
	mgr := newTestManager(t, nil)
	s := New(mgr, zerolog.Nop())

	assert.False(t, mgr.Status().SchedulerRunning)
	s.Start()
	assert.True(t, mgr.Status().SchedulerRunning)
	s.Stop()
	assert.False(t, mgr.Status().SchedulerRunning)
}
