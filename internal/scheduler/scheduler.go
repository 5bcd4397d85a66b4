// Package scheduler runs the automated backup jobs: a daily backup at the
// configured time of day, a weekly backup on the configured weekday, a
// monthly backup on the configured day of month, and a daily retention
// cleanup. The loop wakes on a fixed short interval and fires whichever
// jobs have come due, so a missed tick only delays a job, never drops it.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/litevault/litevault/internal/manager"
	"github.com/litevault/litevault/internal/metadata"
)

const (
	// tickInterval is how often the loop checks for due jobs.
	tickInterval = 60 * time.Second

	// Cleanup runs off-peak, after the nightly backup window.
	cleanupHour   = 3
	cleanupMinute = 30
)

// Scheduler drives automated backups against a single Manager. The
// schedule is read from the metadata store on every tick start; changing it
// while running requires a stop and restart.
type Scheduler struct {
	mgr      *manager.Manager
	log      zerolog.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// last fire times, used to fire each occurrence exactly once
	lastDaily   time.Time
	lastWeekly  time.Time
	lastMonthly time.Time
	lastCleanup time.Time
}

// New creates a scheduler and registers it as the manager's scheduler
// status probe.
func New(mgr *manager.Manager, logger zerolog.Logger) *Scheduler {
	s := &Scheduler{
		mgr:      mgr,
		log:      logger,
		interval: tickInterval,
		now:      time.Now,
	}
	mgr.SetSchedulerProbe(s.Running)
	return s
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the background loop. Starting an already-running
// scheduler is a logged no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn().Msg("scheduler already running")
		return
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		s.loop(stop)
	}(s.stopCh, s.doneCh)

	s.log.Info().Msg("scheduler started")
}

// Stop shuts the loop down and waits for it to exit. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stop)
	<-done
	s.log.Info().Msg("scheduler stopped")
}

// Serve runs the loop under a supervision tree until ctx is cancelled or
// Stop is called. It implements suture.Service; a Stop-initiated exit
// returns suture.ErrDoNotRestart so the supervisor does not bring the
// service back.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn().Msg("scheduler already running")
		<-ctx.Done()
		return ctx.Err()
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	stop, done := s.stopCh, s.doneCh
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	s.log.Info().Msg("scheduler serving")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return suture.ErrDoNotRestart
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick fires every due job. A panic or failure in one tick is logged and
// never terminates the loop.
func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("scheduler tick panicked")
		}
	}()

	now := s.now()
	sched := s.mgr.Store().Schedule()

	hour, minute, err := metadata.ParseClock(sched.Daily)
	if err != nil {
		s.log.Error().Err(err).Msg("invalid daily schedule, skipping tick")
		return
	}
	weekday, err := metadata.ParseWeekday(sched.Weekly)
	if err != nil {
		s.log.Error().Err(err).Msg("invalid weekly schedule, skipping tick")
		return
	}

	if target := occurrenceToday(now, hour, minute); due(now, s.lastDaily, target) {
		s.lastDaily = now
		s.runBackup(metadata.TypeDaily)
	}

	if now.Weekday() == weekday {
		if target := occurrenceToday(now, hour, minute); due(now, s.lastWeekly, target) {
			s.lastWeekly = now
			s.runBackup(metadata.TypeWeekly)
		}
	}

	if now.Day() == sched.Monthly {
		if target := occurrenceToday(now, hour, minute); due(now, s.lastMonthly, target) {
			s.lastMonthly = now
			s.runBackup(metadata.TypeMonthly)
		}
	}

	if target := occurrenceToday(now, cleanupHour, cleanupMinute); due(now, s.lastCleanup, target) {
		s.lastCleanup = now
		s.runCleanup()
	}
}

func (s *Scheduler) runBackup(typ metadata.BackupType) {
	s.log.Info().Str("type", string(typ)).Msg("running scheduled backup")
	res := s.mgr.CreateBackup(context.Background(), typ, s.mgr.DefaultCompress())
	if !res.Success {
		s.log.Error().Str("type", string(typ)).Msg(res.Message)
	}
}

func (s *Scheduler) runCleanup() {
	s.log.Info().Msg("running scheduled retention cleanup")
	res := s.mgr.CleanupOldBackups(context.Background())
	if !res.Success {
		s.log.Error().Msg(res.Message)
	}
}

// occurrenceToday returns today's instance of a time-of-day schedule.
func occurrenceToday(now time.Time, hour, minute int) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
}

// due reports whether target has passed and has not been fired for yet.
func due(now, last, target time.Time) bool {
	return !now.Before(target) && last.Before(target)
}
