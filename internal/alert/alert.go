// Package alert raises operator-facing alerts for failed backup operations.
//
// An alert is an error-level log line plus a small event file dropped under
// <dir>/events/ so external monitors can pick it up without tailing logs.
// Repeated alerts for the same key are suppressed for a cooldown window to
// keep a flapping failure from flooding the channel.
package alert

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCooldown is how long repeats of the same alert key are suppressed.
const DefaultCooldown = 6 * time.Hour

// Notifier emits cooldown-guarded alerts.
type Notifier struct {
	dir      string
	cooldown time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	last map[string]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewNotifier creates a notifier writing event files under dir/events.
func NewNotifier(dir string, cooldown time.Duration, logger zerolog.Logger) *Notifier {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Notifier{
		dir:      dir,
		cooldown: cooldown,
		logger:   logger,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Alert raises an alert for key with the given message. It returns true when
// the alert was emitted and false when it was suppressed by the cooldown.
func (n *Notifier) Alert(key, message string) bool {
	now := n.now()

	n.mu.Lock()
	if last, ok := n.last[key]; ok && now.Sub(last) < n.cooldown {
		n.mu.Unlock()
		n.logger.Debug().Str("alert", key).Msg("alert suppressed by cooldown")
		return false
	}
	n.last[key] = now
	n.mu.Unlock()

	n.logger.Error().Str("alert", key).Msg(message)

	if err := n.writeEvent(key, message, now); err != nil {
		n.logger.Warn().Err(err).Str("alert", key).Msg("failed to write alert event file")
	}
	return true
}

// writeEvent drops a one-line event file for external monitors.
func (n *Notifier) writeEvent(key, message string, at time.Time) error {
	eventsDir := filepath.Join(n.dir, "events")
	if err := os.MkdirAll(eventsDir, 0o750); err != nil {
		return fmt.Errorf("failed to create events directory: %w", err)
	}

	name := fmt.Sprintf("%d_%s.event", at.UnixNano(), key)
	body := fmt.Sprintf("%s|%s|%s\n", at.Format(time.RFC3339), key, message)
	return os.WriteFile(filepath.Join(eventsDir, name), []byte(body), 0o600)
}
